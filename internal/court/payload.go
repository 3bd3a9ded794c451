package court

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire shape wrapping every case response from the portal.
// A result of zero means the case was found.
type Envelope struct {
	Result  int             `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type casePayload struct {
	CaseNumber    string           `json:"caseNumber"`
	Type          string           `json:"type"`
	Style         string           `json:"style"`
	FileDate      string           `json:"fileDate"`
	Status        string           `json:"status"`
	CourtLocation string           `json:"courtLocation"`
	Parties       []partyPayload   `json:"caseParties"`
	Attorneys     []counselPayload `json:"caseAttornies"`
	Hearings      []hearingPayload `json:"caseHearings"`
	Events        []eventPayload   `json:"caseEvents"`
}

type partyPayload struct {
	Type         string `json:"type"`
	FirstName    string `json:"firstName"`
	MiddleName   string `json:"middleName"`
	LastName     string `json:"lastName"`
	NickName     string `json:"nickName"`
	BusinessName string `json:"businessName"`
	FullName     string `json:"fullName"`
	IsDefendant  bool   `json:"isDefendant"`
}

type counselPayload struct {
	FirstName    string `json:"firstName"`
	MiddleName   string `json:"middleName"`
	LastName     string `json:"lastName"`
	Representing string `json:"representing"`
	BarNumber    string `json:"barNumber"`
	IsLead       bool   `json:"isLead"`
}

type hearingPayload struct {
	HearingID     string            `json:"hearingId"`
	Calendar      string            `json:"calendar"`
	Type          string            `json:"type"`
	Date          string            `json:"date"`
	Time          string            `json:"time"`
	HearingResult string            `json:"hearingResult"`
	Documents     []documentPayload `json:"documents"`
}

type eventPayload struct {
	Documents []documentPayload `json:"documents"`
}

type documentPayload struct {
	DocumentID   string `json:"documentId"`
	DocumentName string `json:"documentName"`
}

// ParseCaseBody decodes a portal case response body into a CaseRecord.
// A non-zero envelope result maps to ErrNotFound; anything undecodable maps
// to ErrParse.
func ParseCaseBody(body []byte) (*CaseRecord, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrParse, err)
	}
	if env.Result != 0 {
		return nil, fmt.Errorf("%w: result=%d message=%q", ErrNotFound, env.Result, env.Message)
	}
	var payload casePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode case data: %v", ErrParse, err)
	}
	if payload.CaseNumber == "" {
		return nil, fmt.Errorf("%w: case data missing caseNumber", ErrParse)
	}
	return buildRecord(env, payload), nil
}

func buildRecord(env Envelope, payload casePayload) *CaseRecord {
	record := &CaseRecord{
		CaseNumber:    NormalizeCaseNumber(payload.CaseNumber),
		Type:          payload.Type,
		Style:         payload.Style,
		FileDate:      payload.FileDate,
		Status:        payload.Status,
		CourtLocation: payload.CourtLocation,
		Result:        env.Result,
		Message:       env.Message,
	}
	for _, p := range payload.Parties {
		record.Parties = append(record.Parties, Party(p))
	}
	for _, a := range payload.Attorneys {
		record.Attorneys = append(record.Attorneys, Attorney(a))
	}
	for _, h := range payload.Hearings {
		record.Hearings = append(record.Hearings, Hearing{
			HearingID: h.HearingID,
			Calendar:  h.Calendar,
			Type:      h.Type,
			Date:      h.Date,
			Time:      h.Time,
			Result:    h.HearingResult,
		})
	}
	record.Documents = collectDocuments(payload)
	return record
}

// collectDocuments walks event and hearing document lists in order. The
// portal repeats a document under every event that references it, so refs
// are deduplicated by document ID.
func collectDocuments(payload casePayload) []DocumentRef {
	var out []DocumentRef
	seen := make(map[string]struct{})
	add := func(docs []documentPayload) {
		for _, d := range docs {
			if d.DocumentID == "" {
				continue
			}
			if _, ok := seen[d.DocumentID]; ok {
				continue
			}
			seen[d.DocumentID] = struct{}{}
			out = append(out, DocumentRef{
				DocumentID: d.DocumentID,
				Name:       SanitizeDocumentName(d.DocumentName),
			})
		}
	}
	for _, event := range payload.Events {
		add(event.Documents)
	}
	for _, hearing := range payload.Hearings {
		add(hearing.Documents)
	}
	return out
}
