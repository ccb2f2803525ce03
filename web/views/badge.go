package views

import (
	"strings"

	twmerge "github.com/Oudwins/tailwind-merge-go"
)

const badgeBase = "inline-flex items-center rounded-full px-2 py-0.5 text-xs font-medium bg-zinc-100 text-zinc-700"

// BadgeClass returns the classes of the badge shown for a log level or a
// command or session status.
func BadgeClass(value string) string {
	switch strings.ToLower(value) {
	case "error", "failed", "failure", "critical":
		return twmerge.Merge(badgeBase, "bg-red-100 text-red-700")
	case "warning", "warn", "pending", "queued":
		return twmerge.Merge(badgeBase, "bg-amber-100 text-amber-800")
	case "info", "running", "in_progress":
		return twmerge.Merge(badgeBase, "bg-sky-100 text-sky-700")
	case "success", "completed", "active", "ok":
		return twmerge.Merge(badgeBase, "bg-emerald-100 text-emerald-700")
	default:
		return badgeBase
	}
}

// TabClass returns the classes of a tab header.
func TabClass(active bool) string {
	base := "px-4 py-2 text-sm border-b-2 border-transparent text-zinc-500 hover:text-zinc-800"
	if active {
		return twmerge.Merge(base, "border-indigo-600 text-indigo-700 font-semibold")
	}
	return base
}

// NotificationClass returns the classes of a notification banner.
func NotificationClass(level string) string {
	base := "rounded-md border px-4 py-3 text-sm border-zinc-200 bg-zinc-50 text-zinc-800"
	switch level {
	case "error":
		return twmerge.Merge(base, "border-red-300 bg-red-50 text-red-800")
	case "warning":
		return twmerge.Merge(base, "border-amber-300 bg-amber-50 text-amber-900")
	default:
		return base
	}
}
