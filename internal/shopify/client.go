package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kanucard/concierge/internal/config"
	"github.com/kanucard/concierge/pkg/logger"
)

// Customer is the validated shape of a Shopify customer record. Upstream
// GraphQL payloads are decoded into this at the boundary so nothing deeper in
// the service has to guess at optional fields.
type Customer struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Phone     string   `json:"phone"`
	Tags      []string `json:"tags"`
}

func (c *Customer) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

type Order struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	CreatedAt         string `json:"createdAt"`
	TotalPrice        string `json:"totalPrice"`
	FinancialStatus   string `json:"financialStatus"`
	FulfillmentStatus string `json:"fulfillmentStatus"`
}

// Client talks to the Shopify Admin GraphQL API with a custom-app access
// token. Only two fixed query documents are used, so the requests are plain
// HTTP POSTs rather than a generated GraphQL client.
type Client struct {
	Endpoint    string
	AccessToken string
	httpClient  *http.Client
}

func NewClient(cfg config.ShopifyConfig) *Client {
	endpoint := ""
	if cfg.ShopName != "" {
		endpoint = fmt.Sprintf("https://%s.myshopify.com/admin/api/%s/graphql.json", cfg.ShopName, cfg.APIVersion)
	}
	return &Client{
		Endpoint:    endpoint,
		AccessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Configured() bool {
	return c.Endpoint != "" && c.AccessToken != ""
}

const customerSearchQuery = `
query findCustomer($query: String!) {
  customers(first: 1, query: $query) {
    edges {
      node {
        id
        email
        firstName
        lastName
        phone
        tags
      }
    }
  }
}`

const customerOrdersQuery = `
query getOrders($id: ID!, $first: Int!) {
  customer(id: $id) {
    orders(first: $first, sortKey: CREATED_AT, reverse: true) {
      edges {
        node {
          id
          name
          createdAt
          totalPrice
          financialStatus
          fulfillmentStatus
        }
      }
    }
  }
}`

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type customerNode struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Phone     string   `json:"phone"`
	Tags      []string `json:"tags"`
}

type customerSearchResponse struct {
	Data struct {
		Customers struct {
			Edges []struct {
				Node customerNode `json:"node"`
			} `json:"edges"`
		} `json:"customers"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type customerOrdersResponse struct {
	Data struct {
		Customer *struct {
			Orders struct {
				Edges []struct {
					Node Order `json:"node"`
				} `json:"edges"`
			} `json:"orders"`
		} `json:"customer"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FindCustomerByEmail returns the matching customer, or nil when Shopify has
// no record for the address.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	return c.findCustomer(ctx, fmt.Sprintf("email:%s", email))
}

// FindCustomerByPhone searches by normalized E.164 number.
func (c *Client) FindCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	return c.findCustomer(ctx, fmt.Sprintf("phone:%s", NormalizePhone(phone)))
}

func (c *Client) findCustomer(ctx context.Context, query string) (*Customer, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("shopify client not configured")
	}

	body, err := c.post(ctx, graphQLRequest{
		Query:     customerSearchQuery,
		Variables: map[string]interface{}{"query": query},
	})
	if err != nil {
		return nil, err
	}

	var decoded customerSearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("malformed shopify response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("shopify query failed: %s", decoded.Errors[0].Message)
	}

	edges := decoded.Data.Customers.Edges
	if len(edges) == 0 {
		return nil, nil
	}

	node := edges[0].Node
	if node.ID == "" || node.Email == "" {
		return nil, fmt.Errorf("shopify returned customer without id or email")
	}

	return &Customer{
		ID:        node.ID,
		Email:     node.Email,
		FirstName: node.FirstName,
		LastName:  node.LastName,
		Phone:     node.Phone,
		Tags:      node.Tags,
	}, nil
}

func (c *Client) GetCustomerOrders(ctx context.Context, customerID string, limit int) ([]Order, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("shopify client not configured")
	}
	if limit <= 0 {
		limit = 20
	}

	body, err := c.post(ctx, graphQLRequest{
		Query:     customerOrdersQuery,
		Variables: map[string]interface{}{"id": customerID, "first": limit},
	})
	if err != nil {
		return nil, err
	}

	var decoded customerOrdersResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("malformed shopify response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("shopify query failed: %s", decoded.Errors[0].Message)
	}
	if decoded.Data.Customer == nil {
		return []Order{}, nil
	}

	orders := make([]Order, 0, len(decoded.Data.Customer.Orders.Edges))
	for _, edge := range decoded.Data.Customer.Orders.Edges {
		orders = append(orders, edge.Node)
	}
	return orders, nil
}

func (c *Client) post(ctx context.Context, payload graphQLRequest) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn("shopify_unexpected_status", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return nil, fmt.Errorf("shopify returned status %d", resp.StatusCode)
	}

	return body, nil
}
