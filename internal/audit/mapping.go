package audit

import (
	"encoding/json"
	"strings"
)

// Audited actions.
const (
	ActionLoginSuccess = "login_success"
	ActionLoginFailure = "login_failure"
	ActionLogout       = "logout"
	ActionExportCSV    = "export_csv"
	ActionExportDenied = "export_denied"
)

// Resources named in audit entries.
const (
	ResourceSession = "session"
)

// SeriesResource returns the resource of a telemetry series: "<host>/<topic>/<field>".
func SeriesResource(host, topic, field string) string {
	return strings.Join([]string{host, topic, field}, "/")
}

// DeniedAction maps a guarded action to the action recorded when it is refused: "export_csv" -> "export_denied".
// Actions without a dedicated denial name get a "_denied" suffix.
func DeniedAction(action string) string {
	if action == ActionExportCSV {
		return ActionExportDenied
	}
	return action + "_denied"
}

// Metadata encodes kv as a JSON object for the metadata column. Returns "" for an empty map.
func Metadata(kv map[string]any) string {
	if len(kv) == 0 {
		return ""
	}
	b, err := json.Marshal(kv)
	if err != nil {
		return ""
	}
	return string(b)
}
