package data

// ConfigurationMismatchError is returned when line-only and arc facts are
// mixed in one store.
type ConfigurationMismatchError struct {
	Have Mode
	Got  Mode
}

func (e *ConfigurationMismatchError) Error() string {
	if e.Have == LinesMode {
		return "can't add branch measurements to existing line data"
	}
	return "can't add line measurements to existing branch data"
}
