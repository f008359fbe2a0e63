package logging

import (
	"errors"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactString masks every email address embedded in s.
func RedactString(s string) string {
	return emailRegex.ReplaceAllStringFunc(s, RedactEmail)
}

// RedactHook masks email addresses in the message and string fields of every
// entry before it is written.
type RedactHook struct{}

func (RedactHook) Levels() []logrus.Level { return logrus.AllLevels }

func (RedactHook) Fire(e *logrus.Entry) error {
	e.Message = RedactString(e.Message)
	for k, v := range e.Data {
		switch val := v.(type) {
		case string:
			e.Data[k] = RedactString(val)
		case error:
			if msg := val.Error(); emailRegex.MatchString(msg) {
				e.Data[k] = errors.New(RedactString(msg))
			}
		case []string:
			out := make([]string, len(val))
			for i, s := range val {
				out[i] = RedactString(s)
			}
			e.Data[k] = out
		}
	}
	return nil
}
