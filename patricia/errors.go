package patricia

import (
	"github.com/pkg/errors"
	"github.com/ubgpsuite/bgpgrep/netaddr"
)

func errFamilyMismatch(trie, got netaddr.Family) error {
	return errors.Errorf("patricia: trie bound to family %s, got prefix of family %s", trie, got)
}
