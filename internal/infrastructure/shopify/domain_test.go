package shopify

import "testing"

func TestCanonicalShopDomain(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"sock-drawer.myshopify.com", "sock-drawer.myshopify.com"},
		{"SOCK-DRAWER.MYSHOPIFY.COM", "sock-drawer.myshopify.com"},
		{"  sock-drawer.myshopify.com  ", "sock-drawer.myshopify.com"},
		{"https://sock-drawer.myshopify.com", "sock-drawer.myshopify.com"},
		{"https://sock-drawer.myshopify.com/admin", "sock-drawer.myshopify.com"},
		{"http://sock-drawer.myshopify.com?ref=x", "sock-drawer.myshopify.com"},
	}
	for _, tc := range cases {
		got, err := CanonicalShopDomain(tc.in)
		if err != nil {
			t.Fatalf("CanonicalShopDomain(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("CanonicalShopDomain(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalShopDomainRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"example.com",
		"https://example.com",
		"myshopify.com.evil.com",
		"sock-drawer.myshopify.com.evil.com",
	} {
		if got, err := CanonicalShopDomain(in); err == nil {
			t.Fatalf("CanonicalShopDomain(%q) = %q, expected error", in, got)
		}
	}
}

func TestDefaultShopName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"sock-drawer.myshopify.com", "Sock Drawer"},
		{"acme.myshopify.com", "Acme"},
		{"my_test_store.myshopify.com", "My Test Store"},
	}
	for _, tc := range cases {
		if got := DefaultShopName(tc.in); got != tc.want {
			t.Fatalf("DefaultShopName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
