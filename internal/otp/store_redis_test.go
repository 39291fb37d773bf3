package otp

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kanucard/concierge/internal/shopify"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewRedisStore(client), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	challenge := Challenge{
		Code:      "123456",
		ExpiresAt: time.Now().Add(10 * time.Minute).Truncate(time.Second),
		Attempts:  2,
		Customer: shopify.Customer{
			ID:    "gid://shopify/Customer/123",
			Email: "taro@example.com",
		},
		ApprovalKey: "flow-1",
	}

	if err := store.Put(ctx, "taro@example.com#flow-1", challenge, 10*time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Get(ctx, "taro@example.com#flow-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected challenge to exist")
	}
	if got.Code != challenge.Code || got.Attempts != challenge.Attempts || got.ApprovalKey != challenge.ApprovalKey {
		t.Fatalf("challenge fields changed in round trip: %+v", got)
	}
	if got.Customer.Email != challenge.Customer.Email {
		t.Fatalf("customer snapshot lost: %+v", got.Customer)
	}
}

func TestRedisStoreMissingKey(t *testing.T) {
	store, _ := newRedisStore(t)

	_, ok, err := store.Get(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected no challenge for unknown key")
	}
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	challenge := Challenge{Code: "123456", ExpiresAt: time.Now().Add(time.Minute)}
	if err := store.Put(ctx, "taro@example.com", challenge, time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "taro@example.com"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, ok, _ := store.Get(ctx, "taro@example.com"); ok {
		t.Fatal("expected challenge to be deleted")
	}
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	challenge := Challenge{Code: "123456", ExpiresAt: time.Now().Add(time.Minute)}
	if err := store.Put(ctx, "taro@example.com", challenge, time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, ok, _ := store.Get(ctx, "taro@example.com"); ok {
		t.Fatal("expected challenge to expire with the redis TTL")
	}
}

func TestServiceWithRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)

	lookup := &fakeLookup{customers: map[string]*shopify.Customer{
		"taro@example.com": registeredCustomer("taro@example.com"),
	}}
	svc := NewService(lookup, store, &fakeMailer{}, nil, nil, testOTPConfig())

	ctx := context.Background()
	if err := svc.RequestCode(ctx, "taro@example.com", ""); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}

	ch, ok, err := store.Get(ctx, ChallengeKey("taro@example.com", ""))
	if err != nil || !ok {
		t.Fatalf("expected stored challenge, ok=%v err=%v", ok, err)
	}

	if _, err := svc.VerifyCode(ctx, "taro@example.com", ch.Code, ""); err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, ChallengeKey("taro@example.com", "")); ok {
		t.Fatal("expected challenge consumed from redis")
	}
}
