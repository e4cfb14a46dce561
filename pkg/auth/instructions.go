package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide writes step-by-step instructions for copying the
// Douyin web cookie out of a browser
func ShowCookieExtractionGuide(w io.Writer) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "📚 DOUYIN COOKIE EXTRACTION GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Public profiles usually work without a cookie. Douyin starts rejecting")
	fmt.Fprintln(w, "anonymous listing requests after a while; a browser cookie fixes that.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🌐 STEP 1: Open https://www.douyin.com in your browser")
	fmt.Fprintln(w, "   - Log in (scan the QR code with the Douyin app)")
	fmt.Fprintln(w, "   - Open any user profile page")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔧 STEP 2: Open Developer Tools")
	fmt.Fprintln(w, "   • Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "   • Safari: enable the Develop menu, then Cmd+Option+I")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📡 STEP 3: Network tab")
	fmt.Fprintln(w, "   1. Select the 'Network' tab and refresh the page (F5)")
	fmt.Fprintln(w, "   2. Filter for 'aweme/post'")
	fmt.Fprintln(w, "   3. Click the request, open 'Headers' → 'Request Headers'")
	fmt.Fprintln(w, "   4. Copy the whole value of the 'Cookie:' line")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔑 STEP 4: Save it")
	fmt.Fprintln(w, "   douyindl auth login --name main")
	fmt.Fprintln(w, "   Paste the cookie when prompted. Input is hidden.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "💡 TIPS:")
	fmt.Fprintln(w, "   • The cookie should contain sessionid=... and ttwid=...")
	fmt.Fprintln(w, "   • Cookies expire; run 'auth login' again when downloads start failing with auth errors")
	fmt.Fprintf(w, "   • For CI, set %s instead of storing the cookie\n", CookieEnv)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "⚠️  SECURITY WARNING:")
	fmt.Fprintln(w, "   • The cookie gives FULL access to your Douyin account")
	fmt.Fprintln(w, "   • NEVER share it with anyone")
	fmt.Fprintln(w, "   • douyindl keeps it in the system keyring or an encrypted file")
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// ShowQuickExtractGuide writes a condensed version for experienced users
func ShowQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "\n🍪 Quick Guide: F12 → Network → Refresh → aweme/post request → Headers → Cookie")
	fmt.Fprintln(w, "   Paste the full Cookie header value")
	fmt.Fprintln(w, "   Type 'help' for detailed instructions")
}
