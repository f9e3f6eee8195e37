package place

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type PlaceSuite struct {
	body []byte
}

var _ = Suite(&PlaceSuite{})

const zucchabarURI = "https://pleiades.stoa.org/places/295374"

func (s *PlaceSuite) SetUpSuite(c *C) {
	b, err := os.ReadFile(filepath.Join("testdata", "295374.json"))
	c.Assert(err, IsNil)
	s.body = b
}

func (s *PlaceSuite) TestUnloaded(c *C) {
	p := New()
	c.Assert(p.Loaded(), Equals, false)
	c.Assert(p.URI(), Equals, "")
	c.Assert(p.Title(), Equals, "")
	c.Assert(p.Data(), IsNil)
}

func (s *PlaceSuite) TestFromJSON(c *C) {
	p, err := FromJSON(zucchabarURI, s.body)
	c.Assert(err, IsNil)
	c.Assert(p.Loaded(), Equals, true)
	c.Assert(p.URI(), Equals, zucchabarURI)
	c.Assert(p.Title(), Equals, "Zucchabar")
	c.Assert(p.ID(), Equals, "295374")
	c.Assert(p.PlaceTypes(), DeepEquals, []string{"settlement"})
}

func (s *PlaceSuite) TestPayloadURIIsAuthoritative(c *C) {
	p, err := FromJSON("http://pleiades.stoa.org/places/295374", s.body)
	c.Assert(err, IsNil)
	c.Assert(p.URI(), Equals, zucchabarURI)
}

func (s *PlaceSuite) TestMissingURIFallsBackToRequest(c *C) {
	p, err := FromJSON("http://example.test/places/7", []byte(`{"title":"Roma"}`))
	c.Assert(err, IsNil)
	c.Assert(p.URI(), Equals, "http://example.test/places/7")
	c.Assert(p.Title(), Equals, "Roma")
}

func (s *PlaceSuite) TestMalformedPayload(c *C) {
	for _, body := range []string{`[1,2]`, `null`, `{"title":`, `"Roma"`} {
		_, err := FromJSON(zucchabarURI, []byte(body))
		c.Assert(errors.Is(err, ErrMalformedPayload), Equals, true, Commentf("body %s", body))
	}
}

func (s *PlaceSuite) TestNames(c *C) {
	p, err := FromJSON(zucchabarURI, s.body)
	c.Assert(err, IsNil)
	c.Assert(p.Names(), DeepEquals, []string{"Zucchabar", "Zouchabbari", "Colonia Iulia Augusta Zucchabar"})
}

func (s *PlaceSuite) TestReprPoint(c *C) {
	p, err := FromJSON(zucchabarURI, s.body)
	c.Assert(err, IsNil)
	lon, lat, ok := p.ReprPoint()
	c.Assert(ok, Equals, true)
	c.Assert(lon, Equals, 2.2228)
	c.Assert(lat, Equals, 36.3037)

	unlocated, err := FromJSON(zucchabarURI, []byte(`{"uri":"u","title":"t","reprPoint":null}`))
	c.Assert(err, IsNil)
	_, _, ok = unlocated.ReprPoint()
	c.Assert(ok, Equals, false)
}

func (s *PlaceSuite) TestDataIsCopied(c *C) {
	p, err := FromJSON(zucchabarURI, s.body)
	c.Assert(err, IsNil)
	d := p.Data()
	d["title"] = "changed"
	d["placeTypes"].([]any)[0] = "changed"
	c.Assert(p.Title(), Equals, "Zucchabar")
	v, ok := p.Attr("placeTypes")
	c.Assert(ok, Equals, true)
	c.Assert(v, DeepEquals, []any{"settlement"})
}

func (s *PlaceSuite) TestReplace(c *C) {
	p, err := FromJSON(zucchabarURI, s.body)
	c.Assert(err, IsNil)
	next, err := FromJSON(zucchabarURI, []byte(`{"uri":"https://pleiades.stoa.org/places/991367","title":"Roma"}`))
	c.Assert(err, IsNil)
	p.Replace(next)
	c.Assert(p.URI(), Equals, "https://pleiades.stoa.org/places/991367")
	c.Assert(p.Title(), Equals, "Roma")
	_, ok := p.Attr("placeTypes")
	c.Assert(ok, Equals, false)
}

func (s *PlaceSuite) TestMarshalJSON(c *C) {
	p, err := FromJSON(zucchabarURI, s.body)
	c.Assert(err, IsNil)
	b, err := json.Marshal(p)
	c.Assert(err, IsNil)
	var out struct {
		URI   string         `json:"uri"`
		Title string         `json:"title"`
		Data  map[string]any `json:"data"`
	}
	c.Assert(json.Unmarshal(b, &out), IsNil)
	c.Assert(out.URI, Equals, zucchabarURI)
	c.Assert(out.Title, Equals, "Zucchabar")
	c.Assert(out.Data["id"], Equals, "295374")
}
