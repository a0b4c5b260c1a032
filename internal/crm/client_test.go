package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"referral_backend/internal/referral"
	"referral_backend/platform/logger"
)

// newClientServer spins up a fake service handling login plus mission info,
// with the media secretary present in the leadership roster.
func newClientServer(t *testing.T) (*http.ServeMux, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	registerAuthRoutes(t, mux, func() string { return server.URL })

	mux.HandleFunc("/services/mission/500", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"mission":{"id":500,"name":"Test Mission","leadership":[
			{"missionary":{"emailAddress":"president@mission.org","clientGuid":"guid-1","cmisId":1}},
			{"missionary":{"emailAddress":"sec@mission.org","clientGuid":"guid-42","cmisId":42,"firstName":"Ana","lastName":"Lima"}}
		]}}`)
	})

	return mux, server
}

func newTestClient(t *testing.T, server *httptest.Server, assume bool) *Client {
	t.Helper()
	cfg := testCRMConfig{loginBase: server.URL, identityBase: server.URL, base: server.URL, assume: assume}
	client, err := NewClient(context.Background(), cfg, logger.New("test"))
	if err != nil {
		t.Fatalf("client setup failed: %v", err)
	}
	return client
}

func TestNewClient_ResolvesMediaSecretary(t *testing.T) {
	_, server := newClientServer(t)
	client := newTestClient(t, server, false)

	if client.mediaSec == nil {
		t.Fatal("expected media secretary to be resolved from leadership")
	}
	if client.mediaSec.CmisID != 42 || client.mediaSec.ClientGUID != "guid-42" {
		t.Fatalf("wrong secretary resolved: %+v", client.mediaSec)
	}
	if client.AuthExpired() {
		t.Fatal("fresh client should not report an expired session")
	}
}

func TestCreateAndSendReference_SubmitsExpectedPayload(t *testing.T) {
	mux, server := newClientServer(t)

	mux.HandleFunc(assignmentPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bestProsAreaId":77,"bestOrgId":9,"proselytingAreas":[
			{"name":"Vila Mariana","missionaries":[{"missionaryType":"ELDER","lastName":"Silva"}],"areaNumbers":["11 91234-5678"]}
		]}`)
	})

	var submitted referencePayload
	mux.HandleFunc(sendToLocalPath, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&submitted); err != nil {
			t.Errorf("bad submit body: %v", err)
		}
		fmt.Fprint(w, `{}`)
	})

	client := newTestClient(t, server, false)
	before := time.Now()
	area, err := client.CreateAndSendReference(context.Background(), ReferenceInput{
		FirstName: "Maria",
		LastName:  "Santos",
		Address:   "Rua A 1, Cidade",
		Phone:     "11987654321",
		Email:     "maria@example.org",
		Type:      referral.BookOfMormon,
		Note:      "utm-123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := submitted.Payload
	if len(body.Offers) != 1 || body.Offers[0].OfferItemID != 23 || body.Offers[0].DeliveryMethodID != 1 {
		t.Fatalf("unexpected offers: %+v", body.Offers)
	}
	if body.Referral.ReferralStatus != "UNCONTACTED" {
		t.Fatalf("expected UNCONTACTED status, got %q", body.Referral.ReferralStatus)
	}
	wantCreate := (before.Unix() + 60) * 1000
	if body.Referral.CreateDate < wantCreate || body.Referral.CreateDate > wantCreate+5000 {
		t.Fatalf("expected createDate near %d, got %d", wantCreate, body.Referral.CreateDate)
	}
	if body.Referral.SentToLocalPersonGUID == nil || *body.Referral.SentToLocalPersonGUID != "guid-42" {
		t.Fatalf("expected secretary guid on referral, got %v", body.Referral.SentToLocalPersonGUID)
	}
	if body.Household.LocID != 87 {
		t.Fatalf("expected locId 87, got %d", body.Household.LocID)
	}
	if body.Household.ChangerID == nil || *body.Household.ChangerID != 42 {
		t.Fatalf("expected secretary cmis id as changer, got %v", body.Household.ChangerID)
	}
	if body.Person.ContactSource != 15398 || body.Person.PreferredLangID != 59 {
		t.Fatalf("unexpected person constants: %+v", body.Person)
	}
	if body.Person.ProsAreaID == nil || *body.Person.ProsAreaID != 77 {
		t.Fatalf("expected resolved prosAreaId on person, got %v", body.Person.ProsAreaID)
	}
	if !body.NeedsPrivacyNotice {
		t.Fatal("expected needsPrivacyNotice on realtime create")
	}

	if area == nil {
		t.Fatal("expected formatted area for resolved address")
	}
	if area.Name != "Vila Mariana" || area.Missionaries[0] != "Elder Silva" {
		t.Fatalf("unexpected area: %+v", area)
	}
}

func TestCreateAndSendReference_UnresolvedStillSubmits(t *testing.T) {
	mux, server := newClientServer(t)

	mux.HandleFunc(assignmentPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	submits := 0
	mux.HandleFunc(sendToLocalPath, func(w http.ResponseWriter, r *http.Request) {
		submits++
		var submitted referencePayload
		if err := json.NewDecoder(r.Body).Decode(&submitted); err != nil {
			t.Errorf("bad submit body: %v", err)
		}
		if submitted.Payload.Person.ProsAreaID != nil {
			t.Errorf("expected null prosAreaId for unresolved address, got %v", submitted.Payload.Person.ProsAreaID)
		}
		fmt.Fprint(w, `{}`)
	})

	client := newTestClient(t, server, false)
	area, err := client.CreateAndSendReference(context.Background(), ReferenceInput{
		FirstName: "Jo",
		Address:   "endereco desconhecido",
		Phone:     "11987654321",
		Type:      referral.MissionaryVisit,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if area != nil {
		t.Fatalf("expected nil area for unresolved address, got %+v", area)
	}
	if submits != 1 {
		t.Fatalf("expected the referral to be submitted anyway, got %d submits", submits)
	}
}

func TestCreateAndSendReference_AmbiguousFailureAssumedSuccessful(t *testing.T) {
	mux, server := newClientServer(t)

	mux.HandleFunc(assignmentPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bestProsAreaId":77,"bestOrgId":9,"proselytingAreas":[{"name":"Centro"}]}`)
	})
	mux.HandleFunc(sendToLocalPath, func(w http.ResponseWriter, r *http.Request) {
		// Drop the connection mid-request so the client sees a transport
		// error with an unknown server-side outcome.
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer does not support hijacking")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack failed: %v", err)
			return
		}
		conn.Close()
	})

	client := newTestClient(t, server, true)
	area, err := client.CreateAndSendReference(context.Background(), ReferenceInput{
		FirstName: "Maria",
		Address:   "Rua A 1",
		Phone:     "11987654321",
		Type:      referral.BookOfMormon,
	})
	if err != nil {
		t.Fatalf("expected ambiguous failure to be swallowed, got %v", err)
	}
	if area == nil || area.Name != "Centro" {
		t.Fatalf("expected area despite dropped connection, got %+v", area)
	}
}

func TestCreateAndSendReference_ErrorStatusFails(t *testing.T) {
	mux, server := newClientServer(t)

	mux.HandleFunc(assignmentPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bestProsAreaId":77,"proselytingAreas":[{"name":"Centro"}]}`)
	})
	mux.HandleFunc(sendToLocalPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := newTestClient(t, server, true)
	_, err := client.CreateAndSendReference(context.Background(), ReferenceInput{
		FirstName: "Maria",
		Address:   "Rua A 1",
		Phone:     "11987654321",
		Type:      referral.BookOfMormon,
	})
	if err == nil {
		t.Fatal("a definite error status must not be assumed successful")
	}
}

func TestAssignReferrals_SweepSkipsUnresolvable(t *testing.T) {
	mux, server := newClientServer(t)

	mux.HandleFunc("/services/people/mission/500", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"persons":[
			{"guid":1,"firstName":"Ana","address":"Rua Boa 10","areaId":null,"householdGuid":"hh-1"},
			{"guid":2,"firstName":"Bia","address":"sem endereco","areaId":null,"householdGuid":"hh-2"},
			{"guid":3,"firstName":"Caio","address":"Rua C 3","areaId":5,"householdGuid":"hh-3"}
		]}`)
	})

	mux.HandleFunc(assignmentPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("address") == "Rua Boa 10" {
			fmt.Fprint(w, `{"bestProsAreaId":77,"bestOrgId":9,"proselytingAreas":[{"name":"Centro"}]}`)
			return
		}
		fmt.Fprint(w, `{}`)
	})

	mux.HandleFunc(householdPath+"hh-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"address":"Rua Boa 10","people":[{"firstName":"Ana","prosAreaId":null}]}`)
	})

	var reassigned map[string]interface{}
	mux.HandleFunc(sendToLocalPath, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&reassigned); err != nil {
			t.Errorf("bad reassignment body: %v", err)
		}
		fmt.Fprint(w, `{}`)
	})

	client := newTestClient(t, server, false)
	assigned, skipped, err := client.AssignReferrals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assigned != 1 {
		t.Fatalf("expected 1 assigned, got %d", assigned)
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", skipped)
	}

	payload, _ := reassigned["payload"].(map[string]interface{})
	if payload == nil {
		t.Fatal("expected a reassignment submit")
	}
	hh, _ := payload["household"].(map[string]interface{})
	if hh == nil {
		t.Fatal("expected household document in reassignment")
	}
	if got, _ := hh["orgId"].(float64); got != 9 {
		t.Fatalf("expected rewritten orgId 9, got %v", hh["orgId"])
	}
	if payload["needsPrivacyNotice"] != false {
		t.Fatalf("reassignments must not re-trigger the privacy notice, got %v", payload["needsPrivacyNotice"])
	}
}
