package banner

import (
	"steadydb/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
     _                 _       _ _
 ___| |_ ___  __ _  __| |_   _| | |__
/ __| __/ _ \/ _' |/ _' | | | | | '_ \
\__ \ ||  __/ (_| | (_| | |_| | | |_) |
|___/\__\___|\__,_|\__,_|\__, |_|_.__/
                         |___/        `

func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n"
}
