package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger hands out the process-wide logger. Output is one JSON object per
// line on stdout; callers build their own payloads.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest serializes entry as a single JSON log line. Entries that fail
// to marshal are replaced by an error line rather than dropped silently.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"request log entry not serializable"}`)
		return
	}
	Logger().Println(string(data))
}
