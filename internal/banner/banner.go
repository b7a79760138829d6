package banner

import (
	"loadq/internal/styles"
)

const ascii = `
    __                __    
   / /___  ____ _____/ /___ _
  / / __ \/ __ '/ __  / __ '/
 / / /_/ / /_/ / /_/ / /_/ / 
/_/\____/\__,_/\__,_/\__, /  
                       /_/   `

// GetString returns the styled banner printed above the command help.
func GetString() string {
	return "\n" + styles.Banner.Render(ascii) + "\n"
}
