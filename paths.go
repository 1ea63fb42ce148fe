package logagent

import (
	"strings"
	"time"
)

// Log kinds the gateway knows how to serve. Anything else in a request is
// dropped without a result entry.
const (
	LogTypeClient  = "client"
	LogTypeBackend = "backend"
)

const remoteSeparator = `\`

// joinRemote joins path segments with backslashes. The remote filesystem is
// Windows-style regardless of the host this process runs on, so the host
// separator must never leak in here.
func joinRemote(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.Trim(seg, `/\`)
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, remoteSeparator)
}

// logDate formats now minus daysAgo calendar days as YYYY-MM-DD.
func logDate(now time.Time, daysAgo int) string {
	return now.AddDate(0, 0, -daysAgo).Format("2006-01-02")
}

// dailyLogPath derives the remote path for one log kind. Backend logs are
// rolled into a zip at day end, so any offset >= 1 targets the archive while
// offset 0 targets the still-open directory. Unknown kinds yield "".
func dailyLogPath(base, logType, date string, daysAgo int) string {
	switch logType {
	case LogTypeClient:
		return joinRemote(base, "Client", "logs", date)
	case LogTypeBackend:
		if daysAgo >= 1 {
			return joinRemote(base, "Backend", "log", date+".zip")
		}
		return joinRemote(base, "Backend", "log", date)
	default:
		return ""
	}
}

// sanitizeDeviceName makes a device name safe as a single local directory
// component. 门店设备名可能含斜杠（如 "华北/西小口店"），统一替换为下划线。
func sanitizeDeviceName(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer("/", "_", `\`, "_")
	cleaned := replacer.Replace(name)
	if cleaned == "" {
		return "unknown-device"
	}
	return cleaned
}
