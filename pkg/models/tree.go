package models

// TreeNode is one entry of a scanned project tree. Path is relative to
// the scan root, using forward slashes; the root itself has Path ".".
type TreeNode struct {
	Name     string      `json:"name"`
	Type     EntryKind   `json:"type"`
	Path     string      `json:"path"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Walk visits n and its descendants depth-first in child order.
func (n *TreeNode) Walk(fn func(*TreeNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}
