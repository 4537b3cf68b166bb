package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// CrashLogDir is where fatal crash reports are written. Set once during
// startup before any panic can fire.
var CrashLogDir = "./logs"

// InstallCrashHandler prepares the crash report directory. Called at the
// top of main alongside the deferred recovery.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}

	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create log directory: %v\n", err)
	}
}

// RecoverWithCrashFile is the deferred top-level recovery for main.
// It writes a crash report and exits non-zero.
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, GetStackTrace())
		os.Exit(1)
	}
}

// WriteCrashFile writes a crash report covering the panic, all goroutine
// stacks and runtime state, and returns the report path. Falls back to
// stderr when the file cannot be written.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	crashPath := filepath.Join(CrashLogDir, fmt.Sprintf("crash-%s.log", time.Now().Format("2006-01-02T15-04-05")))

	var report strings.Builder

	section := func(title string, body func()) {
		fmt.Fprintf(&report, "=== %s ===\n", title)
		body()
		report.WriteString("\n")
	}

	report.WriteString("=== CLAIMLENS CRASH REPORT ===\n")
	fmt.Fprintf(&report, "Time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&report, "Version: %s\n", GetFullVersion())
	report.WriteString("\n")

	section("PANIC VALUE", func() {
		fmt.Fprintf(&report, "%v\n", panicVal)
	})

	section("STACK TRACE", func() {
		report.WriteString(stackTrace)
	})

	section("ALL GOROUTINES", func() {
		report.WriteString(GetAllGoroutineStacks())
	})

	section("RUNTIME", func() {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		fmt.Fprintf(&report, "NumGoroutine: %d\n", runtime.NumGoroutine())
		fmt.Fprintf(&report, "NumCPU: %d\n", runtime.NumCPU())
		fmt.Fprintf(&report, "GOOS/GOARCH: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(&report, "Alloc: %d MB\n", memStats.Alloc/1024/1024)
		fmt.Fprintf(&report, "Sys: %d MB\n", memStats.Sys/1024/1024)
		fmt.Fprintf(&report, "NumGC: %d\n", memStats.NumGC)
	})

	report.WriteString("=== END CRASH REPORT ===\n")

	// Unbuffered write; the process is about to die.
	if err := os.WriteFile(crashPath, []byte(report.String()), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to write crash file: %v\n", err)
		fmt.Fprint(os.Stderr, report.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - Report saved to: %s !!!\n", crashPath)
	fmt.Fprintf(os.Stderr, "Panic: %v\n", panicVal)

	return crashPath
}

// GetAllGoroutineStacks dumps every goroutine's stack, growing the
// buffer until the dump fits.
func GetAllGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		if len(buf) >= 64*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// GetStackTrace returns the current goroutine's stack.
func GetStackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
