package misc

import (
	"bufio"
	_ "embed"
	"sort"
	"strings"
)

//go:embed data/disposable_domains.txt
var disposableRaw string

//go:embed data/free_domains.txt
var freeRaw string

//go:embed data/role_accounts.txt
var roleRaw string

var (
	disposableDomains = parseList(disposableRaw)
	freeDomains       = parseList(freeRaw)
	roleAccounts      = parseList(roleRaw)
	freeDomainList    = sortedKeys(freeDomains)
)

func parseList(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[strings.ToLower(line)] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsDisposableDomain reports whether the domain belongs to a throwaway
// mailbox provider.
func IsDisposableDomain(domain string) bool {
	_, ok := disposableDomains[strings.ToLower(domain)]
	return ok
}

// IsFreeDomain reports whether the domain is a free mailbox provider.
func IsFreeDomain(domain string) bool {
	_, ok := freeDomains[strings.ToLower(domain)]
	return ok
}

// IsRoleAccount reports whether the local part names a function rather
// than a person. Subaddress tags do not change the answer.
func IsRoleAccount(local string) bool {
	local = strings.ToLower(local)
	if i := strings.IndexByte(local, '+'); i >= 0 {
		local = local[:i]
	}
	_, ok := roleAccounts[local]
	return ok
}

// FreeDomainList returns the free-provider domains in sorted order. The
// returned slice is shared; callers must not modify it.
func FreeDomainList() []string {
	return freeDomainList
}
