package quotes

// errorLog keeps the most recent size messages, dropping the oldest
type errorLog struct {
	size    int
	entries []string
}

func newErrorLog(size int) *errorLog {
	return &errorLog{size: size, entries: make([]string, 0, size)}
}

func (l *errorLog) add(msg string) {
	if len(l.entries) == l.size {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.size-1]
	}
	l.entries = append(l.entries, msg)
}

func (l *errorLog) list() []string {
	return append([]string(nil), l.entries...)
}
