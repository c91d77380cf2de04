package config

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	colorRed         = 31
	colorGreen       = 32
	colorYellow      = 33
	colorBlue        = 36
	colorGray        = 37
	colorLightGreen  = 92
	colorLightYellow = 93
	colorCyan        = 96
)

// NbFormatter prints colored key=value lines with fields in a stable order.
type NbFormatter struct {
	// DisableSource skips the caller lookup.
	DisableSource bool
}

func paint(color int, s string) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}

func levelColor(level log.Level) int {
	switch level {
	case log.DebugLevel, log.TraceLevel:
		return colorGray
	case log.WarnLevel:
		return colorYellow
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		return colorRed
	default:
		return colorBlue
	}
}

func (f *NbFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b strings.Builder
	pair := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(paint(colorCyan, key))
		b.WriteByte('=')
		b.WriteString(value)
	}

	pair("level", paint(levelColor(entry.Level), strings.ToUpper(entry.Level.String())[:4]))
	pair("ts", paint(colorLightYellow, entry.Time.Format("2006-01-02 15:04:05.000")))

	if !f.DisableSource {
		if _, file, line, ok := runtime.Caller(6); ok {
			pair("source", paint(colorLightYellow, file+":"+strconv.Itoa(line)))
		}
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		val := entry.Data[k]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		m, err := json.Marshal(val)
		if err != nil || len(m) == 0 {
			continue
		}
		s := string(m)
		color := colorCyan
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			color = colorGreen
		} else if strings.HasPrefix(s, "\"") {
			color = colorLightYellow
		}
		pair(k, paint(color, s))
	}
	pair("msg", paint(colorLightGreen, strconv.Quote(entry.Message)))

	output := strings.NewReplacer("\r", "\\r", "\n", "\\n").Replace(b.String())
	return []byte(output + "\n"), nil
}
