package logging

import "sync"

// LoggerManager lazily creates and caches one Logger per named component
// ("tick", "lease", "chunkindex", "observation", ...).
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

var (
	managerOnce     sync.Once
	managerInstance *LoggerManager
)

func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		managerInstance = &LoggerManager{loggers: make(map[string]*Logger)}
	})
	return managerInstance
}

// GetLogger returns the logger for component, creating it on first use.
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	if lg, ok := lm.loggers[component]; ok {
		lm.mu.RUnlock()
		return lg, nil
	}
	lm.mu.RUnlock()

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lg, ok := lm.loggers[component]; ok {
		return lg, nil
	}
	lg, err := NewLogger(component)
	if err != nil {
		return nil, err
	}
	lm.loggers[component] = lg
	return lg, nil
}

// MustGetLogger panics if the component logger cannot be created; only
// used at process startup where a logging failure is unrecoverable.
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	lg, err := lm.GetLogger(component)
	if err != nil {
		panic(err)
	}
	return lg
}

func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	names := make([]string, 0, len(lm.loggers))
	for name := range lm.loggers {
		names = append(names, name)
	}
	return names
}

func (lm *LoggerManager) SetLogLevel(component string, consoleLevel LogLevel) {
	lg, err := lm.GetLogger(component)
	if err != nil {
		return
	}
	lg.SetConsoleLevel(consoleLevel)
}

func (lm *LoggerManager) CloseAll() {
	CloseLogger()
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

var defaultLogger = GetComponentLogger("server")

// Info, Warn, Error, Debug log against the default "server" component
// logger, for call sites that don't own a more specific component name.
func Info(format string, args ...interface{})  { defaultLogger.Info(format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.Warn(format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }
func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }
