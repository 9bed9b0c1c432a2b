package discovery

// Discovery abstracts how gossip seed nodes are provided to the membership
// layer: a static list, DNS records, or a seeds file.
type Discovery interface {
    Seeds() []string
}
