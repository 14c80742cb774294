package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCatalogReplace_Validation(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	cases := []struct {
		name string
		feed MenuFeed
		want string
	}{
		{"empty", MenuFeed{}, "Items"},
		{"missing name", MenuFeed{Items: []MenuItemInput{{ID: "x", Price: 10}}}, "Name:required"},
		{"negative price", MenuFeed{Items: []MenuItemInput{{ID: "x", Name: "X", Price: -1}}}, "Price:gte"},
		{"duplicate ids", MenuFeed{Items: []MenuItemInput{{ID: "x", Name: "A"}, {ID: "x", Name: "B"}}}, "unique"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.catalogs.Replace(ctx, p.tenant.ID, tc.feed)
			if !errors.Is(err, ErrInvalidMenu) {
				t.Fatalf("want ErrInvalidMenu, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q should mention %q", err, tc.want)
			}
		})
	}

	if _, err := p.catalogs.Replace(ctx, "missing", testFeed()); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("want ErrTenantNotFound, got %v", err)
	}
}

func TestCatalogLoad_CachesAndInvalidates(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	a, err := p.catalogs.Load(ctx, p.tenant.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Catalog.Len() != 4 || a.Tenant.Name != "Pizzeria Roma" {
		t.Fatalf("loaded %d items for %q", a.Catalog.Len(), a.Tenant.Name)
	}
	b, _ := p.catalogs.Load(ctx, p.tenant.ID)
	if a != b {
		t.Fatalf("second load should hit the cache")
	}

	off := false
	n, err := p.catalogs.Replace(ctx, p.tenant.ID, MenuFeed{Items: []MenuItemInput{
		{ID: "s1", Name: "Sushi", Price: 120},
		{ID: "s2", Name: "Miso", Price: 40, Available: &off},
	}})
	if err != nil || n != 2 {
		t.Fatalf("Replace: n=%d err=%v", n, err)
	}
	c, err := p.catalogs.Load(ctx, p.tenant.ID)
	if err != nil {
		t.Fatalf("Load after replace: %v", err)
	}
	if c == a {
		t.Fatalf("replace must invalidate the cached catalog")
	}
	if c.Catalog.Len() != 1 {
		t.Fatalf("unavailable items are not offered: %d", c.Catalog.Len())
	}
	if _, ok := c.Catalog.Get("p1"); ok {
		t.Fatalf("old items must be gone")
	}
}

func TestCatalogLoad_ExpiresAfterTTL(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	now := time.Now()
	p.catalogs.now = func() time.Time { return now }

	a, _ := p.catalogs.Load(ctx, p.tenant.ID)
	now = now.Add(2 * time.Minute)
	b, err := p.catalogs.Load(ctx, p.tenant.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a == b {
		t.Fatalf("expired entry should be reloaded")
	}
}

func TestCatalogLoad_UnknownTenant(t *testing.T) {
	p := newPipeline(t)
	if _, err := p.catalogs.Load(context.Background(), "nope"); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("want ErrTenantNotFound, got %v", err)
	}
}
