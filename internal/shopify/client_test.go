package shopify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(serverURL string) *Client {
	return &Client{
		Endpoint:    serverURL,
		AccessToken: "test-token",
		httpClient:  &http.Client{},
	}
}

func customerPayload(node map[string]any) map[string]any {
	edges := []any{}
	if node != nil {
		edges = append(edges, map[string]any{"node": node})
	}
	return map[string]any{
		"data": map[string]any{
			"customers": map[string]any{
				"edges": edges,
			},
		},
	}
}

func TestFindCustomerByEmail(t *testing.T) {
	var gotToken string
	var gotQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Shopify-Access-Token")

		var req struct {
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotQuery, _ = req.Variables["query"].(string)

		_ = json.NewEncoder(w).Encode(customerPayload(map[string]any{
			"id":        "gid://shopify/Customer/123",
			"email":     "taro@example.com",
			"firstName": "Taro",
			"lastName":  "Yamada",
			"phone":     "+819012345678",
			"tags":      []string{"vip"},
		}))
	}))
	defer server.Close()

	client := testClient(server.URL)
	customer, err := client.FindCustomerByEmail(context.Background(), "taro@example.com")
	if err != nil {
		t.Fatalf("FindCustomerByEmail failed: %v", err)
	}
	if customer == nil {
		t.Fatal("expected a customer")
	}

	if gotToken != "test-token" {
		t.Fatalf("expected access token header, got %q", gotToken)
	}
	if gotQuery != "email:taro@example.com" {
		t.Fatalf("unexpected search query %q", gotQuery)
	}
	if customer.ID != "gid://shopify/Customer/123" || customer.FullName() != "Taro Yamada" {
		t.Fatalf("unexpected customer %+v", customer)
	}
}

func TestFindCustomerByPhoneNormalizes(t *testing.T) {
	var gotQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotQuery, _ = req.Variables["query"].(string)

		_ = json.NewEncoder(w).Encode(customerPayload(map[string]any{
			"id":    "gid://shopify/Customer/456",
			"email": "taro@example.com",
		}))
	}))
	defer server.Close()

	client := testClient(server.URL)
	if _, err := client.FindCustomerByPhone(context.Background(), "090-1234-5678"); err != nil {
		t.Fatalf("FindCustomerByPhone failed: %v", err)
	}
	if gotQuery != "phone:+819012345678" {
		t.Fatalf("expected normalized phone query, got %q", gotQuery)
	}
}

func TestFindCustomerNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(customerPayload(nil))
	}))
	defer server.Close()

	client := testClient(server.URL)
	customer, err := client.FindCustomerByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("expected nil error for missing customer, got %v", err)
	}
	if customer != nil {
		t.Fatalf("expected nil customer, got %+v", customer)
	}
}

func TestFindCustomerRejectsIncompleteRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(customerPayload(map[string]any{
			"firstName": "Taro",
		}))
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.FindCustomerByEmail(context.Background(), "taro@example.com")
	if err == nil {
		t.Fatal("expected error for customer without id or email")
	}
}

func TestFindCustomerGraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "throttled"}},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.FindCustomerByEmail(context.Background(), "taro@example.com")
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("expected graphql error, got %v", err)
	}
}

func TestFindCustomerHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.FindCustomerByEmail(context.Background(), "taro@example.com")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestGetCustomerOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"customer": map[string]any{
					"orders": map[string]any{
						"edges": []any{
							map[string]any{"node": map[string]any{
								"id":         "gid://shopify/Order/1",
								"name":       "#1001",
								"totalPrice": "5000",
							}},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	orders, err := client.GetCustomerOrders(context.Background(), "gid://shopify/Customer/123", 10)
	if err != nil {
		t.Fatalf("GetCustomerOrders failed: %v", err)
	}
	if len(orders) != 1 || orders[0].Name != "#1001" {
		t.Fatalf("unexpected orders %+v", orders)
	}
}

func TestClientNotConfigured(t *testing.T) {
	client := &Client{httpClient: &http.Client{}}

	if client.Configured() {
		t.Fatal("expected unconfigured client")
	}
	if _, err := client.FindCustomerByEmail(context.Background(), "taro@example.com"); err == nil {
		t.Fatal("expected error from unconfigured client")
	}
}
