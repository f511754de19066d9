// Package mocklogger records log calls so tests can assert on what a component logged.
package mocklogger

import (
	"fmt"
	"sync"

	"github.com/niklaslong/zebra/ulogger"
)

type recorder struct {
	mu       sync.Mutex
	messages map[string][]string
}

// MockLogger is a ulogger.Logger that records every formatted message by level. Loggers
// returned by New and Duplicate record into the same place as their parent.
type MockLogger struct {
	service string
	rec     *recorder
}

func NewTestLogger() *MockLogger {
	return &MockLogger{rec: &recorder{messages: make(map[string][]string)}}
}

func (l *MockLogger) LogLevel() int {
	return 0
}

func (l *MockLogger) SetLogLevel(_ string) {}

func (l *MockLogger) New(service string, _ ...ulogger.Option) ulogger.Logger {
	return &MockLogger{service: service, rec: l.rec}
}

func (l *MockLogger) Duplicate(_ ...ulogger.Option) ulogger.Logger {
	return l
}

func (l *MockLogger) Debugf(format string, args ...interface{}) {
	l.record("Debugf", format, args)
}

func (l *MockLogger) Infof(format string, args ...interface{}) {
	l.record("Infof", format, args)
}

func (l *MockLogger) Warnf(format string, args ...interface{}) {
	l.record("Warnf", format, args)
}

func (l *MockLogger) Errorf(format string, args ...interface{}) {
	l.record("Errorf", format, args)
}

// Fatalf records the message and does not exit.
func (l *MockLogger) Fatalf(format string, args ...interface{}) {
	l.record("Fatalf", format, args)
}

func (l *MockLogger) record(method, format string, args []interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.service != "" {
		msg = l.service + ": " + msg
	}

	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()

	l.rec.messages[method] = append(l.rec.messages[method], msg)
}

// Calls is the number of messages logged with method, "Errorf" for example.
func (l *MockLogger) Calls(method string) int {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()

	return len(l.rec.messages[method])
}

// Messages returns the messages logged with method, prefixed with the service name.
func (l *MockLogger) Messages(method string) []string {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()

	return append([]string(nil), l.rec.messages[method]...)
}

func (l *MockLogger) Reset() {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()

	l.rec.messages = make(map[string][]string)
}
