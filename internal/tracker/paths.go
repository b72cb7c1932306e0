package tracker

import "strings"

// Paths locates Kafka's registration nodes in ZooKeeper.
type Paths struct {
	Brokers   string
	BrokerIDs string
	Topics    string
}

// NewPaths returns the standard Kafka layout below chroot, which may be empty.
func NewPaths(chroot string) Paths {
	root := strings.TrimRight(strings.TrimSpace(chroot), "/")
	if root != "" && !strings.HasPrefix(root, "/") {
		root = "/" + root
	}
	return Paths{
		Brokers:   root + "/brokers",
		BrokerIDs: root + "/brokers/ids",
		Topics:    root + "/brokers/topics",
	}
}
