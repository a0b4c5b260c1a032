package crm

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"referral_backend/internal/referral"
	"referral_backend/platform/apperr"
	"referral_backend/platform/config"
	"referral_backend/platform/logger"
)

// Staff is a missionary record in a mission's leadership list.
type Staff struct {
	EmailAddress string `json:"emailAddress"`
	ClientGUID   string `json:"clientGuid"`
	CmisID       int64  `json:"cmisId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
}

// Leader is one leadership entry wrapping a missionary record.
type Leader struct {
	Missionary Staff `json:"missionary"`
}

// Mission is the mission record with its leadership roster.
type Mission struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Leadership []Leader `json:"leadership"`
}

// Person is a referral-service person record as returned by the mission
// people listing.
type Person struct {
	GUID          int64  `json:"guid"`
	FirstName     string `json:"firstName"`
	Address       string `json:"address"`
	AreaID        *int64 `json:"areaId"`
	HouseholdGUID string `json:"householdGuid"`
	Convert       bool   `json:"convert"`
}

// ReferenceInput is the data needed to create one referral in the service.
// Phone must already be digits-only.
type ReferenceInput struct {
	FirstName string
	LastName  string
	Address   string
	Phone     string
	Email     string
	Type      referral.Type
	Note      string
}

// Client wraps one authenticated session plus the cached media-secretary
// identity. Construct one per workflow invocation; sessions are not reused.
type Client struct {
	session  *Session
	resolver *Resolver
	cfg      config.CRMConfig
	log      *logger.Logger
	mediaSec *Staff
}

// NewClient authenticates a fresh session and resolves the media secretary
// from the mission leadership roster. A missing secretary is not fatal; the
// person-assignment fields of submitted payloads stay null in that case.
func NewClient(ctx context.Context, cfg config.CRMConfig, log *logger.Logger) (*Client, error) {
	session, err := NewSession(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := session.Authenticate(ctx); err != nil {
		log.CRMAuth(cfg.GetCRMUsername(), false, err.Error())
		return nil, err
	}
	log.CRMAuth(cfg.GetCRMUsername(), true, "")

	c := &Client{
		session:  session,
		resolver: NewResolver(session),
		cfg:      cfg,
		log:      log,
	}

	mission, err := c.MissionInfo(ctx)
	if err != nil {
		return nil, err
	}
	c.mediaSec = findMediaSec(mission.Leadership, cfg.GetMediaSecEmail())
	if c.mediaSec == nil {
		log.Warn("media secretary not found in mission leadership", "email", cfg.GetMediaSecEmail())
	}

	return c, nil
}

func findMediaSec(leadership []Leader, email string) *Staff {
	for i := range leadership {
		if leadership[i].Missionary.EmailAddress == email {
			staff := leadership[i].Missionary
			return &staff
		}
	}
	return nil
}

// AuthExpired reports whether the session's auth cookie lifetime has passed.
func (c *Client) AuthExpired() bool {
	return c.session.Expired()
}

// Resolver returns the area resolver bound to this client's session.
func (c *Client) Resolver() *Resolver {
	return c.resolver
}

// MissionInfo fetches the mission record for the configured mission id.
func (c *Client) MissionInfo(ctx context.Context) (*Mission, error) {
	var wrapper struct {
		Mission Mission `json:"mission"`
	}
	endpoint := c.cfg.GetCRMBaseURL() + missionInfoPath + strconv.Itoa(c.cfg.GetMissionID())
	if err := c.session.getJSON(ctx, endpoint, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Mission, nil
}

// CreateAndSendReference resolves the area for the input address, submits
// the referral, and returns the formatted area so callers can notify without
// a second lookup. A resolution miss still submits (with null assignment
// fields) and yields a nil AreaInfo.
//
// Network failures on the final submit are ambiguous: the server may have
// processed the referral before the connection dropped. When the
// assume-success policy is enabled (the default), such failures are logged
// and swallowed rather than retried into a duplicate.
func (c *Client) CreateAndSendReference(ctx context.Context, in ReferenceInput) (*AreaInfo, error) {
	result, err := c.resolver.ResolveByAddress(ctx, in.Address)
	if err != nil {
		return nil, err
	}

	payload := c.buildReferencePayload(in, result, time.Now())
	status, err := c.session.postJSONStatus(ctx, c.cfg.GetCRMBaseURL()+sendToLocalPath, payload)
	if err != nil {
		if !c.cfg.GetAssumeSubmitSuccess() {
			return nil, err
		}
		c.log.Warn("referral submit outcome ambiguous, assuming success", "error", err)
	} else if status >= http.StatusBadRequest {
		return nil, apperr.Newf(apperr.KindInternal, "referral submit returned status %d", status)
	}

	if !result.Resolved() {
		return nil, nil
	}
	area, err := FormatAreaInfo(result)
	if err != nil {
		// The referral is already submitted; failing here would retry it.
		c.log.Warn("resolved area could not be formatted", "error", err)
		return nil, nil
	}
	return area, nil
}

// AssignReferrals sweeps all referral-service records lacking an assigned
// area and re-submits each with a freshly resolved assignment. Records whose
// address does not resolve are skipped; per-record failures never abort the
// sweep.
func (c *Client) AssignReferrals(ctx context.Context) (assigned, skipped int, err error) {
	people, err := c.UnassignedPeople(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, person := range people {
		result, err := c.resolver.ResolveByAddress(ctx, person.Address)
		if err != nil {
			c.log.Warn("sweep: area lookup failed", "person", person.FirstName, "error", err)
			skipped++
			continue
		}
		if !result.Resolved() {
			skipped++
			continue
		}

		doc, err := c.Household(ctx, person.HouseholdGUID)
		if err != nil {
			c.log.Warn("sweep: household fetch failed", "person", person.FirstName, "error", err)
			skipped++
			continue
		}

		if err := c.resubmitHousehold(ctx, doc, result); err != nil {
			c.log.Warn("sweep: reassignment failed", "person", person.FirstName, "error", err)
			skipped++
			continue
		}
		c.log.Info("sweep: reassigned", "person", person.FirstName)
		assigned++
	}

	c.log.SweepResult(assigned, skipped)
	return assigned, skipped, nil
}

// resubmitHousehold rewrites the assignment fields of a fetched household
// document in place and posts it back as a fresh referral.
func (c *Client) resubmitHousehold(ctx context.Context, doc map[string]interface{}, result *AssignmentResult) error {
	people, _ := doc["people"].([]interface{})
	if len(people) == 0 {
		return apperr.New(apperr.KindInternal, "household has no people")
	}
	first, ok := people[0].(map[string]interface{})
	if !ok {
		return apperr.New(apperr.KindInternal, "household person record has unexpected shape")
	}

	first["prosAreaId"] = result.BestProsAreaID
	first["changerId"] = c.changerID()
	doc["orgId"] = result.BestOrgID
	doc["modDate"] = modDate(time.Now())
	doc["missionaryId"] = nil
	doc["changerId"] = c.changerID()

	payload := map[string]interface{}{
		"payload": map[string]interface{}{
			"offers": []interface{}{},
			"referral": map[string]interface{}{
				"personGuid":            nil,
				"referralNote":          nil,
				"createDate":            time.Now().UnixMilli(),
				"sentToLocalPersonGuid": c.sentToGUID(),
				"sentToLocalAppId":      nil,
				"referralStatus":        statusUncontacted,
			},
			"household":          doc,
			"person":             first,
			"follow":             c.follow(),
			"needsPrivacyNotice": false,
		},
	}

	status, err := c.session.postJSONStatus(ctx, c.cfg.GetCRMBaseURL()+sendToLocalPath, payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apperr.Newf(apperr.KindInternal, "reassignment returned status %d", status)
	}
	return nil
}

// AllReferences lists every media referral record in the mission.
func (c *Client) AllReferences(ctx context.Context) ([]Person, error) {
	var wrapper struct {
		Persons []Person `json:"persons"`
	}
	endpoint := c.cfg.GetCRMBaseURL() + missionPeoplePath + strconv.Itoa(c.cfg.GetMissionID())
	if err := c.session.getJSON(ctx, endpoint, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Persons, nil
}

// UnassignedPeople lists referral records that have no assigned area.
func (c *Client) UnassignedPeople(ctx context.Context) ([]Person, error) {
	people, err := c.AllReferences(ctx)
	if err != nil {
		return nil, err
	}
	unassigned := make([]Person, 0)
	for _, person := range people {
		if person.AreaID == nil {
			unassigned = append(unassigned, person)
		}
	}
	return unassigned, nil
}

// RecentConverts lists referral records marked as converts.
func (c *Client) RecentConverts(ctx context.Context) ([]Person, error) {
	people, err := c.AllReferences(ctx)
	if err != nil {
		return nil, err
	}
	converts := make([]Person, 0)
	for _, person := range people {
		if person.Convert {
			converts = append(converts, person)
		}
	}
	return converts, nil
}

// GetPerson fetches the full record for one person.
func (c *Client) GetPerson(ctx context.Context, guid int64) (map[string]interface{}, error) {
	doc := map[string]interface{}{}
	endpoint := c.cfg.GetCRMBaseURL() + personPath + strconv.FormatInt(guid, 10)
	if err := c.session.getJSON(ctx, endpoint, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Household fetches the full household document for a household guid.
func (c *Client) Household(ctx context.Context, guid string) (map[string]interface{}, error) {
	doc := map[string]interface{}{}
	if err := c.session.getJSON(ctx, c.cfg.GetCRMBaseURL()+householdPath+guid, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
