package perms

import (
	"testing"
)

func TestNamespaceMatch(t *testing.T) {
	testCases := []struct {
		rule    Namespace
		path    Namespace
		matches bool
	}{
		{"ixdir.organization", "ixdir.organization.3.facility.5", true},
		{"ixdir.organization.3", "ixdir.organization.3.facility.5", true},
		{"ixdir.organization.*.facility.*", "ixdir.organization.3.facility.5", true},
		{"ixdir.organization.4", "ixdir.organization.3.facility.5", false},
		{"ixdir.organization.3.facility.5.extra", "ixdir.organization.3.facility.5", false},
		{"", "ixdir.organization", false},
		{"ixdir.organization.*.network.*.poc_set.users",
			"ixdir.organization.3.network.7.poc_set.users", true},
		{"ixdir.organization.*.network.*.poc_set.users",
			"ixdir.organization.3.network.7.poc_set.private", false},
	}
	for _, tc := range testCases {
		t.Run(string(tc.rule), func(t *testing.T) {
			_, ok := tc.rule.Match(tc.path)
			if ok != tc.matches {
				t.Fatalf("rule %q against %q: got %v, want %v", tc.rule, tc.path, ok, tc.matches)
			}
		})
	}
}

func TestNamespaceMatchSpecificity(t *testing.T) {
	path := Namespace("ixdir.organization.3.network.7")

	longer, _ := Namespace("ixdir.organization.3.network").Match(path)
	shorter, _ := Namespace("ixdir.organization.3").Match(path)
	if longer <= shorter {
		t.Fatal("longer rule must be more specific than shorter rule")
	}

	literal, _ := Namespace("ixdir.organization.3").Match(path)
	wildcard, _ := Namespace("ixdir.organization.*").Match(path)
	if literal <= wildcard {
		t.Fatal("literal segment must be more specific than wildcard")
	}

	// a longer rule full of wildcards still beats a shorter literal rule
	wildcards, _ := Namespace("ixdir.*.*.*").Match(path)
	if wildcards <= literal {
		t.Fatal("length must dominate literal count")
	}
}

func TestNewNamespace(t *testing.T) {
	n := NewNamespace("ixdir", "Organization", 3)
	if n != "ixdir.organization.3" {
		t.Fatal("got", n)
	}
	if got := n.Child("facility", 5); got != "ixdir.organization.3.facility.5" {
		t.Fatal("got", got)
	}
}

func TestSetResolve(t *testing.T) {
	set := Set{}
	set.Add("ixdir.organization", PermRead)
	set.Add("ixdir.organization.3", PermCRUD)
	set.Add("ixdir.organization.*.network.*.poc_set.users", PermRead)

	testCases := []struct {
		path Namespace
		want Flag
	}{
		{"ixdir.organization.5", PermRead},
		{"ixdir.organization.3", PermCRUD},
		{"ixdir.organization.3.facility.9", PermCRUD},
		{"ixdir.organization.5.network.7.poc_set.users", PermRead},
		{"ixdir.facility", PermDenied},
		{"somethingelse", PermDenied},
	}
	for _, tc := range testCases {
		t.Run(string(tc.path), func(t *testing.T) {
			if got := set.Resolve(tc.path); got != tc.want {
				t.Fatalf("resolve %q: got %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestSetResolveExplicitDenial(t *testing.T) {
	set := Set{}
	set.Add("ixdir.organization", PermCRUD)
	set.Add("ixdir.organization.3", PermDenied)

	if set.Check("ixdir.organization.3.network.7", PermRead) {
		t.Fatal("more specific denial must override broader grant")
	}
	if !set.Check("ixdir.organization.5", PermDelete) {
		t.Fatal("broader grant must stay intact for other objects")
	}
}

func TestSetResolveExplicit(t *testing.T) {
	set := Set{}
	set.Add("ixdir.organization", PermCRUD)
	set.Add("ixdir.organization.*.network.*.poc_set.users", PermRead)

	// the broad organization grant does not open up visibility scoped
	// namespaces, only a rule of full depth does
	if set.CheckExplicit("ixdir.organization.3.network.7.poc_set.private", PermRead) {
		t.Fatal("parent grant must not satisfy an explicit check")
	}
	if !set.CheckExplicit("ixdir.organization.3.network.7.poc_set.users", PermRead) {
		t.Fatal("full depth wildcard rule must satisfy an explicit check")
	}

	// an organization scoped rule of full depth wins over the wildcard rule
	set.Add("ixdir.organization.3.network.*.poc_set.users", PermDenied)
	if set.CheckExplicit("ixdir.organization.3.network.7.poc_set.users", PermRead) {
		t.Fatal("more specific explicit denial must override the wildcard grant")
	}
	if !set.CheckExplicit("ixdir.organization.5.network.7.poc_set.users", PermRead) {
		t.Fatal("wildcard grant must stay intact for other organizations")
	}
}

func TestSetMergeAccumulates(t *testing.T) {
	user := Set{"ixdir.organization": PermRead}
	group := Set{"ixdir.organization": PermCreate, "ixdir.campus": PermRead}
	user.Merge(group)

	if !user.Check("ixdir.organization.1", PermRead|PermCreate) {
		t.Fatal("merged set must accumulate flags")
	}
	if !user.Check("ixdir.campus.2", PermRead) {
		t.Fatal("merged set must include new namespaces")
	}
}

func TestFlagString(t *testing.T) {
	if PermCRUD.String() != "crud" {
		t.Fatal("got", PermCRUD.String())
	}
	if PermDenied.String() != "-" {
		t.Fatal("got", PermDenied.String())
	}
	if (PermRead | PermDelete).String() != "rd" {
		t.Fatal("got", (PermRead | PermDelete).String())
	}
}
