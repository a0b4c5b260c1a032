package crm

import (
	"time"
)

// Fixed domain constants embedded in every referral submission.
const (
	sendToLocalPath   = "/services/referrals/sendtolocal"
	missionInfoPath   = "/services/mission/"
	missionPeoplePath = "/services/people/mission/"
	personPath        = "/services/people/"
	householdPath     = "/services/households/"

	deliveryMethodInPerson  = 1     // in-person delivery
	locIDBrazil             = 87    // Brazil location id
	contactSourceMediaPage  = 15398 // found through mission media page
	preferredLangPortuguese = 59
	phoneTypeMobile         = "PHN_MOBILE"
	emailTypeHome           = "EMAIL_HOME"
	statusUncontacted       = "UNCONTACTED"

	modDateLayout = "2006-01-02T15:04:05.000Z"
)

type referencePayload struct {
	Payload referenceBody `json:"payload"`
}

type referenceBody struct {
	Offers             []offer      `json:"offers"`
	Referral           referralMeta `json:"referral"`
	Household          household    `json:"household"`
	Person             personRecord `json:"person"`
	Follow             []int64      `json:"follow"`
	NeedsPrivacyNotice bool         `json:"needsPrivacyNotice"`
}

type offer struct {
	PersonGUID       *string `json:"personGuid"`
	OfferItemID      int     `json:"offerItemId"`
	DeliveryMethodID int     `json:"deliveryMethodId"`
}

type referralMeta struct {
	PersonGUID            *string `json:"personGuid"`
	ReferralNote          string  `json:"referralNote"`
	CreateDate            int64   `json:"createDate"`
	SentToLocalPersonGUID *string `json:"sentToLocalPersonGuid"`
	SentToLocalAppID      *string `json:"sentToLocalAppId"`
	ReferralStatus        string  `json:"referralStatus"`
}

type household struct {
	StewardCmisID *int64         `json:"stewardCmisId"`
	Address       string         `json:"address"`
	Lat           *float64       `json:"lat"`
	Lng           *float64       `json:"lng"`
	PinDropped    *bool          `json:"pinDropped"`
	LocID         int            `json:"locId"`
	OrgID         *int64         `json:"orgId"`
	MissionaryID  *int64         `json:"missionaryId"`
	ModDate       string         `json:"modDate"`
	People        []personRecord `json:"people"`
	ChangerID     *int64         `json:"changerId"`
}

type personRecord struct {
	FirstName            string      `json:"firstName"`
	LastName             string      `json:"lastName"`
	ContactSource        int         `json:"contactSource"`
	PreferredLangID      int         `json:"preferredLangId"`
	AgeCatID             *int        `json:"ageCatId"`
	PreferredContactType *string     `json:"preferredContactType"`
	PreferredPhoneType   string      `json:"preferredPhoneType"`
	PreferredEmailType   string      `json:"preferredEmailType"`
	Gender               *string     `json:"gender"`
	Note                 string      `json:"note"`
	Tags                 []string    `json:"tags"`
	FoundByPersonGUID    *string     `json:"foundByPersonGuid"`
	ContactInfo          contactInfo `json:"contactInfo"`
	Status               int         `json:"status"`
	DropNotes            *string     `json:"dropNotes"`
	ProsAreaID           *int64      `json:"prosAreaId"`
	ChangerID            *int64      `json:"changerId,omitempty"`
}

type contactInfo struct {
	PhoneNumbers   []phoneEntry `json:"phoneNumbers"`
	EmailAddresses []emailEntry `json:"emailAddresses"`
}

type phoneEntry struct {
	Type     string `json:"type"`
	Number   string `json:"number"`
	Textable bool   `json:"textable"`
}

type emailEntry struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

func modDate(now time.Time) string {
	return now.UTC().Format(modDateLayout)
}

func (c *Client) buildReferencePayload(in ReferenceInput, result *AssignmentResult, now time.Time) referencePayload {
	person := personRecord{
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		ContactSource:      contactSourceMediaPage,
		PreferredLangID:    preferredLangPortuguese,
		PreferredPhoneType: phoneTypeMobile,
		PreferredEmailType: emailTypeHome,
		Note:               "",
		Tags:               []string{},
		ContactInfo: contactInfo{
			PhoneNumbers: []phoneEntry{
				{Type: phoneTypeMobile, Number: in.Phone, Textable: true},
			},
			EmailAddresses: []emailEntry{
				{Type: emailTypeHome, Address: in.Email},
			},
		},
		Status:     1,
		ProsAreaID: result.BestProsAreaID,
	}

	householdPerson := person
	householdPerson.ChangerID = c.changerID()

	return referencePayload{
		Payload: referenceBody{
			Offers: []offer{
				{
					OfferItemID:      in.Type.OfferItemID(),
					DeliveryMethodID: deliveryMethodInPerson,
				},
			},
			Referral: referralMeta{
				ReferralNote: in.Note,
				// one minute ahead, service convention for realtime creates
				CreateDate:            (now.Unix() + 60) * 1000,
				SentToLocalPersonGUID: c.sentToGUID(),
				ReferralStatus:        statusUncontacted,
			},
			Household: household{
				Address:   in.Address,
				LocID:     locIDBrazil,
				OrgID:     result.BestOrgID,
				ModDate:   modDate(now),
				People:    []personRecord{householdPerson},
				ChangerID: c.changerID(),
			},
			Person:             person,
			Follow:             c.follow(),
			NeedsPrivacyNotice: true,
		},
	}
}

func (c *Client) changerID() *int64 {
	if c.mediaSec == nil {
		return nil
	}
	return &c.mediaSec.CmisID
}

func (c *Client) sentToGUID() *string {
	if c.mediaSec == nil {
		return nil
	}
	return &c.mediaSec.ClientGUID
}

func (c *Client) follow() []int64 {
	if c.mediaSec == nil {
		return []int64{}
	}
	return []int64{c.mediaSec.CmisID}
}
