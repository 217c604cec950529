package htmlutil

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// FindTextNode returns the first text node under root whose contents
// contain substr, in document order.
func FindTextNode(root *html.Node, substr string) *html.Node {
	if root == nil {
		return nil
	}
	if root.Type == html.TextNode && strings.Contains(root.Data, substr) {
		return root
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if found := FindTextNode(child, substr); found != nil {
			return found
		}
	}
	return nil
}

// FollowingText returns the trimmed text of the node that follows the
// given one in document order: the next sibling of the node itself or,
// failing that, of its nearest ancestor. legacy table markup puts a
// label and its value in adjacent cells, which this walks across.
func FollowingText(node *html.Node) string {
	for n := node; n != nil; n = n.Parent {
		for sibling := n.NextSibling; sibling != nil; sibling = sibling.NextSibling {
			text := strings.TrimSpace(GetText(sibling))
			if text != "" {
				return text
			}
		}
	}
	return ""
}
