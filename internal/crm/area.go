package crm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"referral_backend/platform/apperr"
	"referral_backend/platform/phone"
)

const assignmentPath = "/services/mission/assignment"

// AssignmentResult is the raw area-assignment response for an address or
// coordinate lookup. A nil BestProsAreaID is a valid outcome, not an error.
type AssignmentResult struct {
	BestProsAreaID   *int64            `json:"bestProsAreaId"`
	BestOrgID        *int64            `json:"bestOrgId"`
	Coordinates      []float64         `json:"coordinates"`
	ProselytingAreas []ProselytingArea `json:"proselytingAreas"`
}

// Resolved reports whether the lookup produced a target assignment unit.
func (r *AssignmentResult) Resolved() bool {
	return r != nil && r.BestProsAreaID != nil
}

// ProselytingArea is one candidate area in an assignment response.
type ProselytingArea struct {
	Name         string       `json:"name"`
	Missionaries []Missionary `json:"missionaries"`
	AreaNumbers  []string     `json:"areaNumbers"`
}

// Missionary is a field missionary serving in a proselyting area.
type Missionary struct {
	MissionaryType string `json:"missionaryType"`
	LastName       string `json:"lastName"`
}

// AreaInfo is the formatted projection of an assignment result used by
// notifications. Missionaries and Phones are parallel lists; index 0 is the
// primary contact.
type AreaInfo struct {
	Name         string   `json:"name"`
	Missionaries []string `json:"missionaries"`
	Phones       []string `json:"phones"`
	OrgID        *int64   `json:"orgId"`
	ProsAreaID   *int64   `json:"prosAreaId"`
}

// Resolver resolves addresses and coordinates to assignment areas through an
// authenticated session.
type Resolver struct {
	session *Session
}

// NewResolver creates a resolver bound to the given session.
func NewResolver(session *Session) *Resolver {
	return &Resolver{session: session}
}

// ResolveByAddress queries the service for the area covering an address.
// When the address itself does not yield an assignment, it falls back once to
// a coordinate lookup using the coordinates of the first response. The
// returned result may still carry no assignment; callers check Resolved().
func (r *Resolver) ResolveByAddress(ctx context.Context, address string) (*AssignmentResult, error) {
	query := url.Values{}
	query.Set("address", address)
	query.Set("langCd", "por")

	result := &AssignmentResult{}
	endpoint := r.session.cfg.GetCRMBaseURL() + assignmentPath + "?" + query.Encode()
	if err := r.session.getJSON(ctx, endpoint, result); err != nil {
		return nil, err
	}

	if !result.Resolved() && len(result.Coordinates) >= 2 {
		return r.resolveByCoordinates(ctx, result.Coordinates[0], result.Coordinates[1])
	}
	return result, nil
}

func (r *Resolver) resolveByCoordinates(ctx context.Context, lat, lng float64) (*AssignmentResult, error) {
	query := url.Values{}
	query.Set("coordinates", fmt.Sprintf("%v,%v", lat, lng))
	query.Set("langCd", "por")

	result := &AssignmentResult{}
	endpoint := r.session.cfg.GetCRMBaseURL() + assignmentPath + "?" + query.Encode()
	if err := r.session.getJSON(ctx, endpoint, result); err != nil {
		return nil, err
	}
	return result, nil
}

// FormatAreaInfo projects the first proselyting area of a raw assignment
// result into the AreaInfo shape: missionary display names as
// Capitalize(type) + " " + lastName, phone numbers stripped to digits.
// A result without a proselyting area is an explicit error; callers are
// expected to check Resolved() before formatting.
func FormatAreaInfo(result *AssignmentResult) (*AreaInfo, error) {
	if result == nil || len(result.ProselytingAreas) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "assignment result has no proselyting area")
	}

	area := result.ProselytingAreas[0]

	missionaries := make([]string, 0, len(area.Missionaries))
	for _, m := range area.Missionaries {
		missionaries = append(missionaries, capitalize(m.MissionaryType)+" "+m.LastName)
	}

	phones := make([]string, 0, len(area.AreaNumbers))
	for _, number := range area.AreaNumbers {
		phones = append(phones, phone.Digits(number))
	}

	return &AreaInfo{
		Name:         area.Name,
		Missionaries: missionaries,
		Phones:       phones,
		OrgID:        result.BestOrgID,
		ProsAreaID:   result.BestProsAreaID,
	}, nil
}

func capitalize(value string) string {
	lowered := strings.ToLower(value)
	if lowered == "" {
		return lowered
	}
	return strings.ToUpper(lowered[:1]) + lowered[1:]
}
