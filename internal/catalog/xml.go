package catalog

import "encoding/xml"

// Wire types for the catalog's XML API. Every field is optional at this
// level; required fields are enforced by the normalizer.

// CollectionPayload is the document returned by the collection endpoint.
type CollectionPayload struct {
	XMLName    xml.Name         `xml:"items"`
	TotalItems string           `xml:"totalitems,attr"`
	Items      []CollectionItem `xml:"item"`
}

// CollectionItem is one game in a user's collection.
type CollectionItem struct {
	ObjectID string           `xml:"objectid,attr"`
	Subtype  string           `xml:"subtype,attr"`
	Names    []CollectionName `xml:"name"`
	Stats    *CollectionStats `xml:"stats"`
}

// CollectionName carries the title as element text.
type CollectionName struct {
	SortIndex string `xml:"sortindex,attr"`
	Value     string `xml:",chardata"`
}

// CollectionStats holds the user's rating for the item.
type CollectionStats struct {
	Rating *ValueAttr `xml:"rating"`
}

// ThingPayload is the document returned by the item-detail endpoint.
type ThingPayload struct {
	XMLName xml.Name    `xml:"items"`
	Items   []ThingItem `xml:"item"`
}

// ThingItem is the detail record of one game.
type ThingItem struct {
	ID            string      `xml:"id,attr"`
	Type          string      `xml:"type,attr"`
	Names         []ThingName `xml:"name"`
	Image         *string     `xml:"image"`
	YearPublished *ValueAttr  `xml:"yearpublished"`
	MinPlayers    *ValueAttr  `xml:"minplayers"`
	MaxPlayers    *ValueAttr  `xml:"maxplayers"`
	PlayingTime   *ValueAttr  `xml:"playingtime"`
	Links         []ThingLink `xml:"link"`
	Statistics    *ThingStats `xml:"statistics"`
}

// ThingName is one name variant; Type is "primary" or "alternate".
type ThingName struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

// ThingLink is a typed relation such as boardgamemechanic or boardgamecategory.
type ThingLink struct {
	Type  string `xml:"type,attr"`
	ID    string `xml:"id,attr"`
	Value string `xml:"value,attr"`
}

// ThingStats is the statistics block of an item.
type ThingStats struct {
	Ratings *ThingRatings `xml:"ratings"`
}

// ThingRatings holds the community ratings summary.
type ThingRatings struct {
	Average *ValueAttr `xml:"average"`
}

// ValueAttr is an element whose content is in a value attribute.
type ValueAttr struct {
	Value string `xml:"value,attr"`
}

// errorsDocument is returned with a 2xx status for invalid requests.
type errorsDocument struct {
	XMLName xml.Name `xml:"errors"`
	Errors  []struct {
		Message string `xml:"message"`
	} `xml:"error"`
}
