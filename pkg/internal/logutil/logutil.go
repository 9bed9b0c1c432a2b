package logutil

import (
    "encoding/json"
    "fmt"
    "log"
    "os"
    "sync/atomic"
    "time"
)

var (
    jsonMode  atomic.Bool
    debugMode atomic.Bool
)

func init() {
    if os.Getenv("CLUSTERSTATE_LOG_JSON") == "1" || os.Getenv("CLUSTERSTATE_LOG_FORMAT") == "json" {
        jsonMode.Store(true)
    }
    if os.Getenv("CLUSTERSTATE_LOG_DEBUG") == "1" {
        debugMode.Store(true)
    }
}

func prefix(l *log.Logger, p string) *log.Logger {
    if l == nil { l = log.Default() }
    return log.New(l.Writer(), p, l.Flags())
}

func SetJSON(enabled bool) { jsonMode.Store(enabled) }

// SetDebug toggles emission of Debugf messages. The expected-discard paths of
// ingestion log at debug only, so this stays off in production by default.
func SetDebug(enabled bool) { debugMode.Store(enabled) }

func Infof(l *log.Logger, f string, args ...any)  { logf(l, "info", f, args...) }
func Warnf(l *log.Logger, f string, args ...any)  { logf(l, "warn", f, args...) }
func Errorf(l *log.Logger, f string, args ...any) { logf(l, "error", f, args...) }

func Debugf(l *log.Logger, f string, args ...any) {
    if !debugMode.Load() { return }
    logf(l, "debug", f, args...)
}

func logf(l *log.Logger, level, f string, args ...any) {
    if jsonMode.Load() {
        // emit structured json
        msg := fmt.Sprintf(f, args...)
        evt := map[string]any{
            "ts":    time.Now().UTC().Format(time.RFC3339Nano),
            "level": level,
            "msg":   msg,
        }
        b, _ := json.Marshal(evt)
        if l == nil { l = log.Default() }
        l.Println(string(b))
        return
    }
    switch level {
    case "debug":
        prefix(l, "DEBUG ").Printf(f, args...)
    case "info":
        prefix(l, "INFO ").Printf(f, args...)
    case "warn":
        prefix(l, "WARN ").Printf(f, args...)
    default:
        prefix(l, "ERROR ").Printf(f, args...)
    }
}
