package wms

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pthm-cable/streamflow/colormap"
	"github.com/pthm-cable/streamflow/velocity"
)

// maxBodySize caps every response body read by the client.
const maxBodySize = 64 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Request string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wms: %s returned %d: %s", e.Request, e.Code, e.Body)
}

// Client talks to a WMS 1.3.0 endpoint that serves JSON legends and rasters
// with embedded decode parameters.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient creates a client for the given endpoint.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported service url scheme %q", u.Scheme)
	}
	return &Client{base: u, http: &http.Client{Timeout: timeout}}, nil
}

type legendResponse struct {
	Title  string                 `json:"title"`
	Legend []colormap.LegendEntry `json:"legend"`
}

// Legend fetches the colour legend of a quantity. A non-nil vr overrides the
// server's value range.
func (c *Client) Legend(ctx context.Context, quantity string, vr *ValueRange) ([]colormap.LegendEntry, error) {
	q := url.Values{
		"request": {"GetLegendGraphic"},
		"format":  {"application/json"},
		"layers":  {quantity},
	}
	if vr != nil {
		q.Set("colorScaleRange", formatFloat(vr.Min)+","+formatFloat(vr.Max))
	}

	body, err := c.get(ctx, "GetLegendGraphic", q)
	if err != nil {
		return nil, err
	}
	var resp legendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing legend: %w", err)
	}
	if len(resp.Legend) < 2 {
		return nil, fmt.Errorf("legend for %q has %d entries", quantity, len(resp.Legend))
	}
	return resp.Legend, nil
}

type capabilitiesXML struct {
	Layers []layerXML `xml:"Capability>Layer"`
}

type layerXML struct {
	Name       string         `xml:"Name"`
	Dimensions []dimensionXML `xml:"Dimension"`
	Layers     []layerXML     `xml:"Layer"`
}

type dimensionXML struct {
	Name  string `xml:"name,attr"`
	Units string `xml:"units,attr"`
	Value string `xml:",chardata"`
}

func findLayer(layers []layerXML, name string) *layerXML {
	for i := range layers {
		if layers[i].Name == name {
			return &layers[i]
		}
		if l := findLayer(layers[i].Layers, name); l != nil {
			return l
		}
	}
	return nil
}

// Capabilities fetches the time steps and elevation range of a quantity.
func (c *Client) Capabilities(ctx context.Context, quantity string) (Capabilities, error) {
	q := url.Values{
		"request": {"GetCapabilities"},
		"service": {"WMS"},
		"version": {"1.3.0"},
	}
	body, err := c.get(ctx, "GetCapabilities", q)
	if err != nil {
		return Capabilities{}, err
	}

	var doc capabilitiesXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return Capabilities{}, fmt.Errorf("parsing capabilities: %w", err)
	}
	layer := findLayer(doc.Layers, quantity)
	if layer == nil {
		return Capabilities{}, fmt.Errorf("%w: %q", ErrUnknownQuantity, quantity)
	}

	var caps Capabilities
	for _, d := range layer.Dimensions {
		switch strings.ToLower(d.Name) {
		case "time":
			caps.Times = splitList(d.Value)
			for _, t := range caps.Times {
				if strings.Contains(t, "/") {
					return Capabilities{}, fmt.Errorf("time extent %q: intervals are not supported", t)
				}
			}
		case "elevation":
			r, err := parseElevation(d.Value)
			if err != nil {
				return Capabilities{}, err
			}
			caps.Elevation = r
		}
	}
	return caps, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseElevation accepts a value list ("0,-5,-10") or an extent
// ("min/max/resolution").
func parseElevation(s string) (*ElevationRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var parts []string
	if strings.Contains(s, "/") {
		parts = strings.Split(s, "/")[:2]
	} else {
		parts = splitList(s)
	}

	var r *ElevationRange
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing elevation %q: %w", s, err)
		}
		if r == nil {
			r = &ElevationRange{Min: v, Max: v}
			continue
		}
		r.Min = min(r.Min, v)
		r.Max = max(r.Max, v)
	}
	return r, nil
}

// Raster fetches a velocity raster for the request's bounding box.
func (c *Client) Raster(ctx context.Context, req RasterRequest) (*velocity.Image, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	b := req.BBox
	q := url.Values{
		"request": {"GetMap"},
		"service": {"WMS"},
		"version": {"1.3.0"},
		"layers":  {req.Quantity},
		"styles":  {req.Style},
		"crs":     {"EPSG:3857"},
		"format":  {"image/png"},
		"bbox": {strings.Join([]string{
			formatFloat(b.MinX), formatFloat(b.MinY), formatFloat(b.MaxX), formatFloat(b.MaxY),
		}, ",")},
		"width":  {strconv.Itoa(req.Width)},
		"height": {strconv.Itoa(req.Height)},
	}
	if req.Time != "" {
		q.Set("time", req.Time)
	}
	if req.Elevation != nil {
		q.Set("elevation", formatFloat(*req.Elevation))
	}

	body, err := c.get(ctx, "GetMap", q)
	if err != nil {
		return nil, err
	}
	img, err := velocity.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decoding raster: %w", err)
	}
	return img, nil
}

func (c *Client) get(ctx context.Context, name string, q url.Values) ([]byte, error) {
	u := *c.base
	merged := u.Query()
	for k, v := range q {
		merged[k] = v
	}
	u.RawQuery = merged.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", name, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &StatusError{Request: name, Code: resp.StatusCode, Body: msg}
	}
	return body, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
