package logging

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// LoggerManager хранит файловые логгеры компонентов (api, eventbus, ...).
// Новый логгер наследует уровни логгера по умолчанию.
type LoggerManager struct {
	mu      sync.Mutex
	loggers map[string]*Logger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает общий менеджер процесса
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = newLoggerManager()
	})
	return globalManager
}

func newLoggerManager() *LoggerManager {
	return &LoggerManager{loggers: make(map[string]*Logger)}
}

// Logger возвращает логгер компонента, создавая его файл при первом вызове.
// Если файл создать не удалось, логгер пишет только в консоль и не кешируется.
func (lm *LoggerManager) Logger(component string) *Logger {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[component]; ok {
		return l
	}

	l, err := NewLogger(component)
	if err != nil {
		Warn("⚠️ Логгер %s без файла: %v", component, err)
		l = NewConsoleLogger(component, os.Stdout)
		l.SetLevels(Default().levels())
		return l
	}
	l.SetLevels(Default().levels())
	lm.loggers[component] = l
	return l
}

// Components возвращает отсортированные имена компонентов с открытыми файлами
func (lm *LoggerManager) Components() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	out := make([]string, 0, len(lm.loggers))
	for name := range lm.loggers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CloseAll закрывает файлы всех компонентов и забывает их
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for name, l := range lm.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("логгер %s: %w", name, err))
		}
	}
	lm.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().Logger(component)
}

// GetAPILogger - файловый логгер отладочного HTTP API
func GetAPILogger() *Logger {
	return GetComponentLogger("api")
}
