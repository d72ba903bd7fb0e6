package utils

import "golang.org/x/net/publicsuffix"

// ApexDomain returns the registrable domain (eTLD+1) of name, or the
// canonical name itself when it has none.
func ApexDomain(name string) string {
	name = HostName(name)
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}

// IsPublicSuffix reports whether name is itself a public suffix such as
// "com" or "co.uk". Such names can never be a mailbox domain.
func IsPublicSuffix(name string) bool {
	name = HostName(name)
	if name == "" {
		return false
	}
	suffix, _ := publicsuffix.PublicSuffix(name)
	return suffix == name
}
