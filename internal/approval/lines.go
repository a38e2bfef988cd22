package approval

import (
	"bufio"
	"context"
	"io"
	"sync"
)

type line struct {
	text string
	err  error
}

// Lines hands out input lines to sequential readers. A single goroutine reads
// ahead at most one line, so a read abandoned on cancellation is delivered to
// the next caller instead of being lost.
type Lines struct {
	r    *bufio.Reader
	ch   chan line
	once sync.Once

	mu  sync.Mutex
	err error
}

func NewLines(r io.Reader) *Lines {
	return &Lines{r: bufio.NewReader(r), ch: make(chan line)}
}

func (l *Lines) start() {
	go func() {
		for {
			s, err := l.r.ReadString('\n')
			l.ch <- line{s, err}
			if err != nil {
				close(l.ch)
				return
			}
		}
	}()
}

// ReadLine returns the next line including its trailing newline. Once the
// underlying reader fails, every later call returns that error.
func (l *Lines) ReadLine(ctx context.Context) (string, error) {
	l.once.Do(l.start)

	l.mu.Lock()
	if l.err != nil {
		err := l.err
		l.mu.Unlock()
		return "", err
	}
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case ln, ok := <-l.ch:
		if !ok {
			return "", io.EOF
		}
		if ln.err != nil {
			l.mu.Lock()
			l.err = ln.err
			l.mu.Unlock()
		}
		return ln.text, ln.err
	}
}
