package domain

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

type Status struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

func NewStatus(kind Kind, text string) *Status {
	return &Status{Kind: kind, Text: text}
}

type ConnectionStatus string

const (
	ConnectionIdle       ConnectionStatus = "idle"
	ConnectionConnecting ConnectionStatus = "connecting"
	ConnectionConnected  ConnectionStatus = "connected"
	ConnectionError      ConnectionStatus = "error"
)

// Kind maps a connection status to how it is displayed.
func (s ConnectionStatus) Kind() Kind {
	switch s {
	case ConnectionConnecting:
		return KindInfo
	case ConnectionConnected:
		return KindSuccess
	case ConnectionError:
		return KindError
	default:
		return ""
	}
}

// View holds the panel updates produced by a single user action. Nil panels
// are left untouched by the presentation layer.
type View struct {
	Connection *Status `json:"connection,omitempty"`
	Results    *Status `json:"results,omitempty"`
	Schema     *Status `json:"schema,omitempty"`
	QueryText  *string `json:"query_text,omitempty"`
}

func (v View) Empty() bool {
	return v.Connection == nil && v.Results == nil && v.Schema == nil && v.QueryText == nil
}

// Merge overlays the non-nil panels of other onto v.
func (v View) Merge(other View) View {
	if other.Connection != nil {
		v.Connection = other.Connection
	}
	if other.Results != nil {
		v.Results = other.Results
	}
	if other.Schema != nil {
		v.Schema = other.Schema
	}
	if other.QueryText != nil {
		v.QueryText = other.QueryText
	}
	return v
}
