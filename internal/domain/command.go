// internal/domain/command.go
package domain

// Command is a decoded, kind-specific operation payload. The payload codec is the
// only producer; handlers are the only consumers.
type Command interface {
	Kind() OperationKind
}

// SendSurveyCommand asks for a survey to be delivered to a set of recipients.
type SendSurveyCommand struct {
	SurveyID     string
	RecipientIDs []string
}

func (SendSurveyCommand) Kind() OperationKind { return KindSendSurvey }

// BroadcastCommand publishes a message to every member matched by the audience filter.
type BroadcastCommand struct {
	Message        string
	AudienceFilter string
}

func (BroadcastCommand) Kind() OperationKind { return KindBroadcast }

// NudgeCommand sends a single-target reminder.
type NudgeCommand struct {
	TargetID     string
	ReminderText string
}

func (NudgeCommand) Kind() OperationKind { return KindNudge }

// EscalateCommand raises the severity of an existing case.
type EscalateCommand struct {
	CaseID   string
	Severity Severity
}

func (EscalateCommand) Kind() OperationKind { return KindEscalate }

// ReassignCommand transfers ownership of a resource between two identities.
type ReassignCommand struct {
	ResourceID string
	FromOwner  string
	ToOwner    string
}

func (ReassignCommand) Kind() OperationKind { return KindReassign }
