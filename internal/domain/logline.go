package domain

// LogLine is one line from the log channel: either a raw string or a
// structured record. Log lines are never cached; the log widget enforces its
// own bounded retention window.
type LogLine struct {
	Raw       string `json:"raw,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Level     string `json:"level,omitempty"`
	Section   string `json:"section,omitempty"`
	Message   string `json:"message,omitempty"`
	ID        string `json:"id,omitempty"`
}

// IsStructured reports whether the line carries structured fields.
func (l *LogLine) IsStructured() bool {
	return l.Raw == ""
}

// Text returns the displayable message body.
func (l *LogLine) Text() string {
	if l.Raw != "" {
		return l.Raw
	}
	return l.Message
}
