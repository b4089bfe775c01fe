// Package identityfile implements the IdentityFile XML codec (spec §6):
// the signed document format identities publish their trust list in, and
// the only non-local input to the Trust Graph API (C2).
//
// Grounded on the teacher's transaction-decode pattern in handlers.go
// (json.NewDecoder(r.Body).Decode(&tx), then per-field validation before
// touching the registry), rewired onto encoding/xml since the wire format
// here is XML rather than JSON.
package identityfile

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/freenet/plugin-wot/internal/model"
)

// MaxFileSize bounds an IdentityFile document before it is even parsed, the
// size limit spec §3/§6 requires be enforced on parse.
const MaxFileSize = 1 << 20 // 1MB

// ErrTooLarge is returned when a document exceeds MaxFileSize.
var ErrTooLarge = fmt.Errorf("identityfile: exceeds %d bytes", MaxFileSize)

// Document is the parsed form of an IdentityFile: identity metadata plus
// the publisher's own trust list entries and the extracted edition hints
// that ride along with each referenced trustee (spec §6).
type Document struct {
	XMLName            xml.Name    `xml:"Identity"`
	ID                 string      `xml:"ID,attr"`
	Nickname           string      `xml:"Name"`
	PublishesTrustList bool        `xml:"PublishesTrustList"`
	Contexts           []string    `xml:"Context>Name"`
	Properties         []property  `xml:"Property"`
	TrustList          []trustEdge `xml:"TrustList>Trust"`
}

type property struct {
	Name  string `xml:"Name,attr"`
	Value string `xml:"Value,attr"`
}

type trustEdge struct {
	TrusteeID string `xml:"Identity,attr"`
	Value     int    `xml:"Value,attr"`
	Comment   string `xml:"Comment,attr"`
	Edition   int64  `xml:"Edition,attr"`
}

// TrustListEntry is one parsed trust assertion plus the edition hint for
// its trustee carried alongside it in the wire format.
type TrustListEntry struct {
	TrusteeID string
	Value     int
	Comment   string
	Edition   int64
}

// Parsed is the validated, application-ready form of a Document: unknown
// XML attributes are tolerated by encoding/xml's default unmarshalling (any
// element/attribute this Document doesn't name is simply ignored), per spec
// §6's "unknown attributes must be tolerated".
type Parsed struct {
	ID                 string
	Nickname           string
	PublishesTrustList bool
	Contexts           map[string]struct{}
	Properties         map[string]string
	TrustList          []TrustListEntry
}

// Parse reads, size-bounds, and decodes r into a validated Parsed document.
// Each field is checked against the same model validators the Trust Graph
// API's own boundary uses, so a malformed document fails here rather than
// partway through a graph mutation.
func Parse(r io.Reader) (*Parsed, error) {
	limited := io.LimitReader(r, MaxFileSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("identityfile: read: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, ErrTooLarge
	}

	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("identityfile: malformed xml: %w", err)
	}

	if err := model.ValidateID(doc.ID); err != nil {
		return nil, err
	}
	if err := model.ValidateNickname(doc.Nickname); err != nil {
		return nil, err
	}

	contexts := make(map[string]struct{}, len(doc.Contexts))
	for _, c := range doc.Contexts {
		contexts[c] = struct{}{}
	}
	if err := model.ValidateContexts(contexts); err != nil {
		return nil, err
	}

	properties := make(map[string]string, len(doc.Properties))
	for _, p := range doc.Properties {
		properties[p.Name] = p.Value
	}
	if err := model.ValidateProperties(properties); err != nil {
		return nil, err
	}

	entries := make([]TrustListEntry, 0, len(doc.TrustList))
	for _, t := range doc.TrustList {
		if err := model.ValidateID(t.TrusteeID); err != nil {
			return nil, fmt.Errorf("identityfile: trust list entry: %w", err)
		}
		if err := model.ValidateValue(t.Value); err != nil {
			return nil, fmt.Errorf("identityfile: trust list entry: %w", err)
		}
		if err := model.ValidateComment(t.Comment); err != nil {
			return nil, fmt.Errorf("identityfile: trust list entry: %w", err)
		}
		if err := model.ValidateEdition(t.Edition); err != nil {
			return nil, fmt.Errorf("identityfile: trust list entry: %w", err)
		}
		entries = append(entries, TrustListEntry{
			TrusteeID: t.TrusteeID,
			Value:     t.Value,
			Comment:   t.Comment,
			Edition:   t.Edition,
		})
	}

	return &Parsed{
		ID:                 doc.ID,
		Nickname:           doc.Nickname,
		PublishesTrustList: doc.PublishesTrustList,
		Contexts:           contexts,
		Properties:         properties,
		TrustList:          entries,
	}, nil
}

// Encode serializes an identity's current state and trust list back into
// IdentityFile XML, the inverse of Parse, used before signing and
// inserting a new edition (spec §6).
func Encode(id *model.Identity, trustList []TrustListEntry) ([]byte, error) {
	doc := Document{
		ID:                 id.ID,
		Nickname:           id.Nickname,
		PublishesTrustList: id.PublishesTrustList,
	}
	for ctx := range id.Contexts {
		doc.Contexts = append(doc.Contexts, ctx)
	}
	for name, value := range id.Properties {
		doc.Properties = append(doc.Properties, property{Name: name, Value: value})
	}
	for _, t := range trustList {
		doc.TrustList = append(doc.TrustList, trustEdge{
			TrusteeID: t.TrusteeID,
			Value:     t.Value,
			Comment:   t.Comment,
			Edition:   t.Edition,
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("identityfile: encode: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
