package handlers

import (
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

const callbackPrefix = "mod:"

type panelAction string

const (
	panelBan        panelAction = "ban"
	panelMute       panelAction = "mute"
	panelWarn       panelAction = "warn"
	panelKick       panelAction = "kick"
	panelUnrestrict panelAction = "unrestrict"
)

func (a panelAction) valid() bool {
	switch a {
	case panelBan, panelMute, panelWarn, panelKick, panelUnrestrict:
		return true
	}
	return false
}

// encodeUint64Min drops leading zero bytes so callback data stays well below the 64 byte limit.
func encodeUint64Min(value uint64) string {
	if value == 0 {
		return base64.RawURLEncoding.EncodeToString([]byte{0})
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, value)
	i := 0
	for i < len(buf) && buf[i] == 0 {
		i++
	}
	return base64.RawURLEncoding.EncodeToString(buf[i:])
}

func decodeUint64Min(value string) (uint64, error) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return 0, errors.Wrap(err, "invalid id")
	}
	if len(data) == 0 || len(data) > 8 {
		return 0, errors.New("invalid id length")
	}
	if len(data) < 8 {
		padded := make([]byte, 8-len(data))
		data = append(padded, data...)
	}
	return binary.BigEndian.Uint64(data), nil
}

func encodeCallback(action panelAction, memberID int64) string {
	return callbackPrefix + string(action) + ":" + encodeUint64Min(uint64(memberID))
}

func decodeCallback(data string) (panelAction, int64, error) {
	payload, ok := strings.CutPrefix(data, callbackPrefix)
	if !ok {
		return "", 0, errors.New("not a moderation callback")
	}
	rawAction, rawID, ok := strings.Cut(payload, ":")
	if !ok {
		return "", 0, errors.New("malformed moderation callback")
	}
	action := panelAction(rawAction)
	if !action.valid() {
		return "", 0, errors.Errorf("unknown panel action %q", rawAction)
	}
	id, err := decodeUint64Min(rawID)
	if err != nil {
		return "", 0, err
	}
	if id == 0 || id > 1<<63-1 {
		return "", 0, errors.New("member id out of range")
	}
	return action, int64(id), nil
}
