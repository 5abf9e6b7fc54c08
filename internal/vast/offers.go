package vast

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gpurig/rig/internal/models"
)

// DefaultOfferLimit caps search results when the caller passes zero.
const DefaultOfferLimit = 20

// OfferQuery narrows an offer search. Query is space-separated key=value
// filters ("num_gpus=2 gpu_name=RTX_4090"); Order is a comma list of
// fields with +/- direction suffixes ("score-").
type OfferQuery struct {
	Query string
	Limit int
	Order string
}

// SearchOffers lists rentable machines. The base query pins verified,
// non-external, currently rentable machines; caller filters layer on top.
func (c *Client) SearchOffers(ctx context.Context, q OfferQuery) ([]models.Offer, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultOfferLimit
	}
	order := q.Order
	if order == "" {
		order = "score-"
	}

	queryObj := map[string]interface{}{
		"verified":          map[string]interface{}{"eq": true},
		"external":          map[string]interface{}{"eq": false},
		"rentable":          map[string]interface{}{"eq": true},
		"rented":            map[string]interface{}{"eq": false},
		"order":             ParseOrder(order),
		"type":              "on-demand",
		"allocated_storage": 5.0,
		"limit":             q.Limit,
	}
	for k, v := range ParseQuery(q.Query) {
		queryObj[k] = v
	}

	body := map[string]interface{}{
		"select_cols": []string{"*"},
		"q":           queryObj,
	}

	var resp struct {
		Offers []models.Offer `json:"offers"`
	}
	if err := c.do(ctx, http.MethodPut, "/search/asks/", nil, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Offers) > q.Limit {
		resp.Offers = resp.Offers[:q.Limit]
	}
	return resp.Offers, nil
}

// SearchVolumes lists rentable storage volumes.
func (c *Client) SearchVolumes(ctx context.Context, query string, limit int) ([]models.VolumeOffer, error) {
	if limit <= 0 {
		limit = DefaultOfferLimit
	}

	body := map[string]interface{}{
		"limit":             limit,
		"allocated_storage": 1.0,
		"order":             [][2]string{{"score", "desc"}},
		"verified":          map[string]interface{}{"eq": true},
		"external":          map[string]interface{}{"eq": false},
		"disk_space":        map[string]interface{}{"gte": 1},
	}
	for k, v := range ParseQuery(query) {
		body[k] = v
	}

	var resp struct {
		Offers []models.VolumeOffer `json:"offers"`
	}
	if err := c.do(ctx, http.MethodPost, "/volumes/search/", nil, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Offers) > limit {
		resp.Offers = resp.Offers[:limit]
	}
	return resp.Offers, nil
}

// SearchTemplates lists the provider's launch templates.
func (c *Client) SearchTemplates(ctx context.Context) ([]models.Template, error) {
	var resp struct {
		Success   *bool             `json:"success"`
		Msg       string            `json:"msg"`
		Templates []models.Template `json:"templates"`
	}
	if err := c.do(ctx, http.MethodGet, "/template/", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Success != nil && !*resp.Success {
		return nil, &APIError{Status: http.StatusOK, Msg: resp.Msg}
	}
	return resp.Templates, nil
}

// ShowUser returns the current account summary including credit balance.
func (c *Client) ShowUser(ctx context.Context) (*models.UserInfo, error) {
	var user models.UserInfo
	q := url.Values{"owner": {"me"}}
	if err := c.do(ctx, http.MethodGet, "/users/current", q, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
