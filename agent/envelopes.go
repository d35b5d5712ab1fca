package agent

// Every query terminates in exactly one of three envelope shapes:
// simple_dialogue, cases, or simulation. Field order is part of the wire
// contract, as are the two spaced JSON keys of CaseDetail.

// SimpleDialogue is a plain text answer.
type SimpleDialogue struct {
	Type     string `json:"type"`
	Response string `json:"response"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// CaseDetail is the structured body of a cases envelope.
type CaseDetail struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	KeyPoints   string `json:"key points"`
	JudgeResult string `json:"judge result"`
}

// Cases wraps one formatted precedent.
type Cases struct {
	Type     string     `json:"type"`
	Response CaseDetail `json:"response"`
	Status   string     `json:"status"`
	Message  string     `json:"message"`
}

// SimulationEntry is one role-played dispute scenario.
type SimulationEntry struct {
	ID        int    `json:"id"`
	Situation string `json:"situation"`
	User      string `json:"user"`
	Agent     string `json:"agent"`
}

// Simulation wraps the role-played scenarios of a dispute simulation.
type Simulation struct {
	Type        string            `json:"type"`
	Simulations []SimulationEntry `json:"simulations"`
	Status      string            `json:"status"`
	Message     string            `json:"message"`
}

// SuccessDialogue builds a successful plain-text envelope.
func SuccessDialogue(response string) SimpleDialogue {
	return SimpleDialogue{
		Type:     "simple_dialogue",
		Response: response,
		Status:   "success",
		Message:  "Response Successful",
	}
}

// ErrorDialogue builds a failed plain-text envelope. response is shown to
// the user; message is the machine-readable reason.
func ErrorDialogue(response, message string) SimpleDialogue {
	return SimpleDialogue{
		Type:     "simple_dialogue",
		Response: response,
		Status:   "error",
		Message:  message,
	}
}

func casesEnvelope(detail CaseDetail) Cases {
	return Cases{
		Type:     "cases",
		Response: detail,
		Status:   "success",
		Message:  "Response Successful",
	}
}

func simulationEnvelope(entries []SimulationEntry) Simulation {
	return Simulation{
		Type:        "simulation",
		Simulations: entries,
		Status:      "success",
		Message:     "Response Successful",
	}
}
