package tui

// UI Text Constants
const (
	TextTitle = "Blog"

	TextFooterList     = "↑/↓ select | ←/→ page | enter open | f favorite | d delete | r refresh | q quit"
	TextFooterDetail   = "esc back | f favorite | d delete | r refresh | q quit"
	TextSignedOut      = "Signed out: run 'blog login' to favorite or delete"
	TextEmpty          = "No articles yet"
	TextStaleIndicator = "(refreshing)"
)
