// internal/codec/codec.go
package codec

import (
	"fmt"
	"strings"

	"rtm-dispatcher/internal/domain"
)

// Decode converts an untyped operation payload into the strongly-typed command for
// the given kind. It is a pure function: no side effects, fail-closed on missing,
// blank, or mistyped required fields. Keys the schema does not know are dropped
// silently so payloads can grow without breaking older dispatchers.
func Decode(kind domain.OperationKind, payload map[string]any) (domain.Command, error) {
	if payload == nil {
		payload = map[string]any{}
	}

	switch kind {
	case domain.KindSendSurvey:
		return decodeSendSurvey(payload)
	case domain.KindBroadcast:
		return decodeBroadcast(payload)
	case domain.KindNudge:
		return decodeNudge(payload)
	case domain.KindEscalate:
		return decodeEscalate(payload)
	case domain.KindReassign:
		return decodeReassign(payload)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownOperationKind, string(kind))
	}
}

func decodeSendSurvey(payload map[string]any) (domain.Command, error) {
	surveyID, err := stringField(domain.KindSendSurvey, payload, "surveyId")
	if err != nil {
		return nil, err
	}
	recipients, err := stringListField(domain.KindSendSurvey, payload, "recipientIds")
	if err != nil {
		return nil, err
	}
	return domain.SendSurveyCommand{SurveyID: surveyID, RecipientIDs: recipients}, nil
}

func decodeBroadcast(payload map[string]any) (domain.Command, error) {
	message, err := stringField(domain.KindBroadcast, payload, "message")
	if err != nil {
		return nil, err
	}
	filter, err := stringField(domain.KindBroadcast, payload, "audienceFilter")
	if err != nil {
		return nil, err
	}
	return domain.BroadcastCommand{Message: message, AudienceFilter: filter}, nil
}

func decodeNudge(payload map[string]any) (domain.Command, error) {
	targetID, err := stringField(domain.KindNudge, payload, "targetId")
	if err != nil {
		return nil, err
	}
	reminder, err := stringField(domain.KindNudge, payload, "reminderText")
	if err != nil {
		return nil, err
	}
	return domain.NudgeCommand{TargetID: targetID, ReminderText: reminder}, nil
}

func decodeEscalate(payload map[string]any) (domain.Command, error) {
	caseID, err := stringField(domain.KindEscalate, payload, "caseId")
	if err != nil {
		return nil, err
	}
	raw, err := stringField(domain.KindEscalate, payload, "severity")
	if err != nil {
		return nil, err
	}
	severity, perr := domain.ParseSeverity(raw)
	if perr != nil {
		return nil, &domain.DecodeError{
			Kind:   domain.KindEscalate,
			Field:  "severity",
			Reason: "must be one of low, medium, high, critical",
		}
	}
	return domain.EscalateCommand{CaseID: caseID, Severity: severity}, nil
}

func decodeReassign(payload map[string]any) (domain.Command, error) {
	resourceID, err := stringField(domain.KindReassign, payload, "resourceId")
	if err != nil {
		return nil, err
	}
	fromOwner, err := stringField(domain.KindReassign, payload, "fromOwner")
	if err != nil {
		return nil, err
	}
	toOwner, err := stringField(domain.KindReassign, payload, "toOwner")
	if err != nil {
		return nil, err
	}
	if fromOwner == toOwner {
		return nil, &domain.DecodeError{
			Kind:   domain.KindReassign,
			Field:  "toOwner",
			Reason: "must differ from fromOwner",
		}
	}
	return domain.ReassignCommand{ResourceID: resourceID, FromOwner: fromOwner, ToOwner: toOwner}, nil
}

// stringField extracts a required text field. A blank string is treated the same
// as a missing key, mirroring the not-blank validation at the entity layer.
func stringField(kind domain.OperationKind, payload map[string]any, key string) (string, error) {
	raw, ok := payload[key]
	if !ok {
		return "", &domain.DecodeError{Kind: kind, Field: key, Reason: "is required"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &domain.DecodeError{Kind: kind, Field: key, Reason: "must be a string"}
	}
	if strings.TrimSpace(s) == "" {
		return "", &domain.DecodeError{Kind: kind, Field: key, Reason: "must not be blank"}
	}
	return s, nil
}

// stringListField extracts a required, non-empty list of non-blank strings. JSON
// decoding hands lists over as []any, so both []string and []any are accepted.
func stringListField(kind domain.OperationKind, payload map[string]any, key string) ([]string, error) {
	raw, ok := payload[key]
	if !ok {
		return nil, &domain.DecodeError{Kind: kind, Field: key, Reason: "is required"}
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	default:
		return nil, &domain.DecodeError{Kind: kind, Field: key, Reason: "must be a list of strings"}
	}

	if len(items) == 0 {
		return nil, &domain.DecodeError{Kind: kind, Field: key, Reason: "must not be empty"}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, &domain.DecodeError{Kind: kind, Field: key, Reason: "must be a list of strings"}
		}
		if strings.TrimSpace(s) == "" {
			return nil, &domain.DecodeError{Kind: kind, Field: key, Reason: "must not contain blank entries"}
		}
		out = append(out, s)
	}
	return out, nil
}
