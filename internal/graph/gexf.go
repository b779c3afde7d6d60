package graph

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

type gexfFile struct {
	XMLName xml.Name  `xml:"gexf"`
	XMLNS   string    `xml:"xmlns,attr"`
	Version string    `xml:"version,attr"`
	Meta    gexfMeta  `xml:"meta"`
	Graph   gexfGraph `xml:"graph"`
}

type gexfMeta struct {
	LastModified string `xml:"lastmodifieddate,attr"`
	Creator      string `xml:"creator"`
	Description  string `xml:"description"`
}

type gexfGraph struct {
	DefaultEdgeType  string               `xml:"defaultedgetype,attr"`
	Mode             string               `xml:"mode,attr"`
	AttributeClasses []gexfAttributeClass `xml:"attributes"`
	Nodes            gexfNodes            `xml:"nodes"`
	Edges            gexfEdges            `xml:"edges"`
}

type gexfAttributeClass struct {
	Class      string          `xml:"class,attr"`
	Attributes []gexfAttribute `xml:"attribute"`
}

type gexfAttribute struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type gexfNodes struct {
	Nodes []gexfNode `xml:"node"`
}

type gexfNode struct {
	ID        string        `xml:"id,attr"`
	Label     string        `xml:"label,attr"`
	AttValues gexfAttValues `xml:"attvalues"`
}

type gexfAttValues struct {
	AttValues []gexfAttValue `xml:"attvalue"`
}

type gexfAttValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

type gexfEdges struct {
	Edges []gexfEdge `xml:"edge"`
}

type gexfEdge struct {
	ID        string        `xml:"id,attr"`
	Source    string        `xml:"source,attr"`
	Target    string        `xml:"target,attr"`
	Weight    string        `xml:"weight,attr,omitempty"`
	AttValues gexfAttValues `xml:"attvalues"`
}

func gexfNodeID(label NodeLabel, key string) string {
	switch label {
	case LabelWebsite:
		return "website:" + key
	case LabelHashtag:
		return "hashtag:" + key
	default:
		return "account:" + key
	}
}

// WriteGEXF dumps the current graph snapshot for downstream tooling.
func WriteGEXF(ctx context.Context, w io.Writer, store Store) error {
	accounts, err := store.AllAccounts(ctx)
	if err != nil {
		return err
	}
	websites, err := store.AllWebsites(ctx)
	if err != nil {
		return err
	}
	hashtags, err := store.AllHashtags(ctx)
	if err != nil {
		return err
	}

	nodes := make([]gexfNode, 0, len(accounts)+len(websites)+len(hashtags))
	for _, a := range accounts {
		nodes = append(nodes, gexfNode{
			ID:    gexfNodeID(LabelAccount, a.Handle),
			Label: a.Handle,
			AttValues: gexfAttValues{AttValues: []gexfAttValue{
				{For: "0", Value: string(LabelAccount)},
				{For: "1", Value: fmt.Sprintf("%d", a.Followers)},
				{For: "2", Value: fmt.Sprintf("%d", a.Posts)},
				{For: "3", Value: a.Location},
				{For: "4", Value: a.Class},
			}},
		})
	}
	for _, site := range websites {
		nodes = append(nodes, gexfNode{
			ID:    gexfNodeID(LabelWebsite, site.Domain),
			Label: site.Domain,
			AttValues: gexfAttValues{AttValues: []gexfAttValue{
				{For: "0", Value: string(LabelWebsite)},
			}},
		})
	}
	for _, h := range hashtags {
		nodes = append(nodes, gexfNode{
			ID:    gexfNodeID(LabelHashtag, h.Tag),
			Label: h.Tag,
			AttValues: gexfAttValues{AttValues: []gexfAttValue{
				{For: "0", Value: string(LabelHashtag)},
			}},
		})
	}

	var edges []gexfEdge
	edgeID := 0
	for _, kind := range AllEdgeKinds {
		records, err := store.EdgesByKind(ctx, kind)
		if err != nil {
			return err
		}
		fromLabel, toLabel := kind.Endpoints()
		for _, rec := range records {
			edges = append(edges, gexfEdge{
				ID:     fmt.Sprintf("e%d", edgeID),
				Source: gexfNodeID(fromLabel, rec.From),
				Target: gexfNodeID(toLabel, rec.To),
				Weight: fmt.Sprintf("%g", rec.Weight),
				AttValues: gexfAttValues{AttValues: []gexfAttValue{
					{For: "0", Value: string(kind)},
					{For: "1", Value: fmt.Sprintf("%d", rec.Count)},
				}},
			})
			edgeID++
		}
	}

	doc := gexfFile{
		XMLNS:   "http://gexf.net/1.3",
		Version: "1.3",
		Meta: gexfMeta{
			LastModified: time.Now().Format("2006-01-02"),
			Creator:      "tanaturf",
			Description:  "Interaction graph snapshot",
		},
		Graph: gexfGraph{
			DefaultEdgeType: "directed",
			Mode:            "static",
			AttributeClasses: []gexfAttributeClass{
				{
					Class: "node",
					Attributes: []gexfAttribute{
						{ID: "0", Title: "kind", Type: "string"},
						{ID: "1", Title: "followers", Type: "integer"},
						{ID: "2", Title: "posts", Type: "integer"},
						{ID: "3", Title: "location", Type: "string"},
						{ID: "4", Title: "class", Type: "string"},
					},
				},
				{
					Class: "edge",
					Attributes: []gexfAttribute{
						{ID: "0", Title: "type", Type: "string"},
						{ID: "1", Title: "count", Type: "integer"},
					},
				},
			},
			Nodes: gexfNodes{Nodes: nodes},
			Edges: gexfEdges{Edges: edges},
		},
	}

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	return encoder.Encode(doc)
}
