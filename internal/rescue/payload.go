package rescue

// Translator resolves a message key, returning fallback when the key is unknown.
type Translator interface {
	Translate(key, fallback string) string
}

type Payload struct {
	Status    string     `json:"status"`
	Error     string     `json:"error"`
	ErrorData *ErrorData `json:"error_data,omitempty"`
}

type ErrorData struct {
	Type    string   `json:"type"`
	Message string   `json:"message"`
	Trace   []string `json:"trace"`
}

// NewPayload shapes err for the client. Diagnostics are attached only when
// withData is set.
func NewPayload(err error, rule Rule, tr Translator, withData bool) Payload {
	msg := err.Error()
	if rule.MessageKey != "" && tr != nil {
		msg = tr.Translate(rule.MessageKey, msg)
	}
	p := Payload{
		Status: StatusName(rule.Status),
		Error:  msg,
	}
	if withData {
		p.ErrorData = &ErrorData{
			Type:    KindOf(err).Name(),
			Message: err.Error(),
			Trace:   Trace(err),
		}
		if p.ErrorData.Trace == nil {
			p.ErrorData.Trace = []string{}
		}
	}
	return p
}
