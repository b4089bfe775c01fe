package identityfile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/freenet/plugin-wot/internal/model"
)

const sampleID = "1234567890123456789012345678901234567890123"

func validDocXML(extra string) string {
	return `<?xml version="1.0"?>
<Identity ID="` + sampleID + `">
  <Name>alice</Name>
  <PublishesTrustList>true</PublishesTrustList>
  <Context>
    <Name>test-context</Name>
  </Context>
  <Property Name="key" Value="value"/>
  <TrustList>
    <Trust Identity="` + sampleID[:42] + `1" Value="50" Comment="friend" Edition="3"/>
  </TrustList>
  ` + extra + `
</Identity>`
}

func TestParseValidDocument(t *testing.T) {
	doc, err := Parse(strings.NewReader(validDocXML("")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.ID != sampleID {
		t.Errorf("expected ID %q, got %q", sampleID, doc.ID)
	}
	if doc.Nickname != "alice" {
		t.Errorf("expected nickname alice, got %q", doc.Nickname)
	}
	if !doc.PublishesTrustList {
		t.Error("expected PublishesTrustList true")
	}
	if _, ok := doc.Contexts["test-context"]; !ok {
		t.Error("expected test-context to be present")
	}
	if doc.Properties["key"] != "value" {
		t.Errorf("expected property key=value, got %q", doc.Properties["key"])
	}
	if len(doc.TrustList) != 1 || doc.TrustList[0].Value != 50 {
		t.Fatalf("expected 1 trust list entry with value 50, got %+v", doc.TrustList)
	}
}

func TestParseTolerantOfUnknownElements(t *testing.T) {
	_, err := Parse(strings.NewReader(validDocXML("<UnknownField>ignored</UnknownField>")))
	if err != nil {
		t.Fatalf("expected unknown elements to be tolerated, got error: %v", err)
	}
}

func TestParseRejectsOversizedDocument(t *testing.T) {
	huge := strings.Repeat("x", MaxFileSize+1)
	_, err := Parse(strings.NewReader(huge))
	if err != ErrTooLarge {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestParseRejectsInvalidTrustValue(t *testing.T) {
	bad := `<?xml version="1.0"?>
<Identity ID="` + sampleID + `">
  <Name>alice</Name>
  <TrustList>
    <Trust Identity="` + sampleID[:42] + `1" Value="999" Comment="" Edition="0"/>
  </TrustList>
</Identity>`
	_, err := Parse(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected out-of-range trust value to be rejected")
	}
}

func TestParseRejectsMalformedID(t *testing.T) {
	bad := `<?xml version="1.0"?><Identity ID="too-short"><Name>alice</Name></Identity>`
	_, err := Parse(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected malformed identity id to be rejected")
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	id := &model.Identity{
		ID:                 sampleID,
		Nickname:           "bob",
		PublishesTrustList: true,
		Contexts:           map[string]struct{}{"ctx": {}},
		Properties:         map[string]string{"k": "v"},
	}
	trustList := []TrustListEntry{{TrusteeID: sampleID[:42] + "1", Value: 10, Comment: "ok", Edition: 1}}

	data, err := Encode(id, trustList)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Contains(data, []byte("bob")) {
		t.Error("expected encoded document to contain the nickname")
	}

	reparsed, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse(Encode(...)): %v", err)
	}
	if reparsed.ID != id.ID || reparsed.Nickname != id.Nickname {
		t.Errorf("round trip mismatch: got %+v", reparsed)
	}
	if len(reparsed.TrustList) != 1 || reparsed.TrustList[0].TrusteeID != trustList[0].TrusteeID {
		t.Errorf("expected trust list to round trip, got %+v", reparsed.TrustList)
	}
}
