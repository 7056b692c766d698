package appcat

import "regexp"

// Category groups logical applications for the dashboard.
type Category string

const (
	CategoryProductivity  Category = "Productivity"
	CategoryBrowsers      Category = "Browsers"
	CategorySocial        Category = "Social"
	CategoryCommunication Category = "Communication"
	CategoryEntertainment Category = "Entertainment"
	CategoryUtilities     Category = "Utilities"
	CategoryEducation     Category = "Education"
	CategorySystem        Category = "System"
	CategoryOther         Category = "Other"
)

// LogicalApp is the stable identity an observed process or notification
// source is mapped to. Catalog entries never mutate; dynamic entries are
// created once per distinct process name and reused for the process lifetime.
type LogicalApp struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Category    Category `json:"category"`
	Color       string   `json:"color"`
}

// OtherAppID is the catch-all identity for notification sources that match
// no rule.
const OtherAppID = "other"

// defaultColor is assigned to dynamically registered apps.
const defaultColor = "#8E8E93"

var catalog = []LogicalApp{
	{ID: "chrome", DisplayName: "Google Chrome", Category: CategoryBrowsers, Color: "#4285F4"},
	{ID: "edge", DisplayName: "Microsoft Edge", Category: CategoryBrowsers, Color: "#0078D7"},
	{ID: "firefox", DisplayName: "Firefox", Category: CategoryBrowsers, Color: "#FF7139"},
	{ID: "brave", DisplayName: "Brave", Category: CategoryBrowsers, Color: "#FB542B"},
	{ID: "opera", DisplayName: "Opera", Category: CategoryBrowsers, Color: "#FF1B2D"},
	{ID: "vscode", DisplayName: "Visual Studio Code", Category: CategoryProductivity, Color: "#007ACC"},
	{ID: "visualstudio", DisplayName: "Visual Studio", Category: CategoryProductivity, Color: "#5C2D91"},
	{ID: "word", DisplayName: "Microsoft Word", Category: CategoryProductivity, Color: "#2B579A"},
	{ID: "excel", DisplayName: "Microsoft Excel", Category: CategoryProductivity, Color: "#217346"},
	{ID: "powerpoint", DisplayName: "Microsoft PowerPoint", Category: CategoryProductivity, Color: "#D24726"},
	{ID: "onenote", DisplayName: "OneNote", Category: CategoryProductivity, Color: "#7719AA"},
	{ID: "notion", DisplayName: "Notion", Category: CategoryProductivity, Color: "#2F3437"},
	{ID: "obsidian", DisplayName: "Obsidian", Category: CategoryProductivity, Color: "#7C3AED"},
	{ID: "notepadpp", DisplayName: "Notepad++", Category: CategoryProductivity, Color: "#90E59A"},
	{ID: "acrobat", DisplayName: "Adobe Acrobat", Category: CategoryProductivity, Color: "#EC1C24"},
	{ID: "figma", DisplayName: "Figma", Category: CategoryProductivity, Color: "#F24E1E"},
	{ID: "discord", DisplayName: "Discord", Category: CategorySocial, Color: "#5865F2"},
	{ID: "whatsapp", DisplayName: "WhatsApp", Category: CategorySocial, Color: "#25D366"},
	{ID: "telegram", DisplayName: "Telegram", Category: CategorySocial, Color: "#26A5E4"},
	{ID: "slack", DisplayName: "Slack", Category: CategoryCommunication, Color: "#4A154B"},
	{ID: "teams", DisplayName: "Microsoft Teams", Category: CategoryCommunication, Color: "#6264A7"},
	{ID: "zoom", DisplayName: "Zoom", Category: CategoryCommunication, Color: "#2D8CFF"},
	{ID: "outlook", DisplayName: "Outlook", Category: CategoryCommunication, Color: "#0F6CBD"},
	{ID: "thunderbird", DisplayName: "Thunderbird", Category: CategoryCommunication, Color: "#0A84FF"},
	{ID: "spotify", DisplayName: "Spotify", Category: CategoryEntertainment, Color: "#1DB954"},
	{ID: "vlc", DisplayName: "VLC", Category: CategoryEntertainment, Color: "#FF8800"},
	{ID: "netflix", DisplayName: "Netflix", Category: CategoryEntertainment, Color: "#E50914"},
	{ID: "steam", DisplayName: "Steam", Category: CategoryEntertainment, Color: "#171A21"},
	{ID: "epicgames", DisplayName: "Epic Games", Category: CategoryEntertainment, Color: "#2A2A2A"},
	{ID: "minecraft", DisplayName: "Minecraft", Category: CategoryEntertainment, Color: "#62B47A"},
	{ID: "roblox", DisplayName: "Roblox", Category: CategoryEntertainment, Color: "#E2231A"},
	{ID: "anki", DisplayName: "Anki", Category: CategoryEducation, Color: "#0A84FF"},
	{ID: "duolingo", DisplayName: "Duolingo", Category: CategoryEducation, Color: "#58CC02"},
	{ID: "explorer", DisplayName: "File Explorer", Category: CategorySystem, Color: "#FFB900"},
	{ID: "taskmgr", DisplayName: "Task Manager", Category: CategorySystem, Color: "#767676"},
	{ID: "settings", DisplayName: "Windows Settings", Category: CategorySystem, Color: "#767676"},
	{ID: "terminal", DisplayName: "Terminal", Category: CategoryUtilities, Color: "#333333"},
	{ID: "powershell", DisplayName: "PowerShell", Category: CategoryUtilities, Color: "#012456"},
	{ID: "cmd", DisplayName: "Command Prompt", Category: CategoryUtilities, Color: "#0C0C0C"},
	{ID: "calculator", DisplayName: "Calculator", Category: CategoryUtilities, Color: "#767676"},
	{ID: OtherAppID, DisplayName: "Other", Category: CategoryOther, Color: defaultColor},
}

// processRule maps a raw process name to a catalog id. Rules are evaluated in
// order; first match wins. Patterns are anchored exact matches against the
// lowercased process name.
type processRule struct {
	pattern *regexp.Regexp
	appID   string
}

var processRules = []processRule{
	{regexp.MustCompile(`^chrome\.exe$`), "chrome"},
	{regexp.MustCompile(`^msedge\.exe$`), "edge"},
	{regexp.MustCompile(`^firefox\.exe$`), "firefox"},
	{regexp.MustCompile(`^brave\.exe$`), "brave"},
	{regexp.MustCompile(`^opera\.exe$`), "opera"},
	{regexp.MustCompile(`^code\.exe$`), "vscode"},
	{regexp.MustCompile(`^devenv\.exe$`), "visualstudio"},
	{regexp.MustCompile(`^winword\.exe$`), "word"},
	{regexp.MustCompile(`^excel\.exe$`), "excel"},
	{regexp.MustCompile(`^powerpnt\.exe$`), "powerpoint"},
	{regexp.MustCompile(`^onenote(im)?\.exe$`), "onenote"},
	{regexp.MustCompile(`^notion\.exe$`), "notion"},
	{regexp.MustCompile(`^obsidian\.exe$`), "obsidian"},
	{regexp.MustCompile(`^notepad\+\+\.exe$`), "notepadpp"},
	{regexp.MustCompile(`^acro(rd32|bat)\.exe$`), "acrobat"},
	{regexp.MustCompile(`^figma\.exe$`), "figma"},
	{regexp.MustCompile(`^discord\.exe$`), "discord"},
	{regexp.MustCompile(`^whatsapp\.exe$`), "whatsapp"},
	{regexp.MustCompile(`^telegram\.exe$`), "telegram"},
	{regexp.MustCompile(`^slack\.exe$`), "slack"},
	{regexp.MustCompile(`^(ms-)?teams\.exe$`), "teams"},
	{regexp.MustCompile(`^zoom\.exe$`), "zoom"},
	{regexp.MustCompile(`^outlook\.exe$`), "outlook"},
	{regexp.MustCompile(`^thunderbird\.exe$`), "thunderbird"},
	{regexp.MustCompile(`^spotify\.exe$`), "spotify"},
	{regexp.MustCompile(`^vlc\.exe$`), "vlc"},
	{regexp.MustCompile(`^netflix\.exe$`), "netflix"},
	{regexp.MustCompile(`^steam(webhelper)?\.exe$`), "steam"},
	{regexp.MustCompile(`^epicgameslauncher\.exe$`), "epicgames"},
	{regexp.MustCompile(`^minecraft(launcher)?\.exe$`), "minecraft"},
	{regexp.MustCompile(`^robloxplayerbeta\.exe$`), "roblox"},
	{regexp.MustCompile(`^anki\.exe$`), "anki"},
	{regexp.MustCompile(`^explorer\.exe$`), "explorer"},
	{regexp.MustCompile(`^taskmgr\.exe$`), "taskmgr"},
	{regexp.MustCompile(`^systemsettings\.exe$`), "settings"},
	{regexp.MustCompile(`^(windowsterminal|wt)\.exe$`), "terminal"},
	{regexp.MustCompile(`^(powershell|pwsh)\.exe$`), "powershell"},
	{regexp.MustCompile(`^cmd\.exe$`), "cmd"},
	{regexp.MustCompile(`^calc(ulatorapp)?\.exe$`), "calculator"},
}

// notificationRule maps a raw notification app identifier (AUMID, package
// family name, or display string) to a catalog id. Unlike process rules these
// are substring matches because notification identifiers vary wildly between
// packaged and unpackaged apps.
type notificationRule struct {
	pattern *regexp.Regexp
	appID   string
}

var notificationRules = []notificationRule{
	{regexp.MustCompile(`chrome`), "chrome"},
	{regexp.MustCompile(`(msedge|microsoftedge)`), "edge"},
	{regexp.MustCompile(`firefox`), "firefox"},
	{regexp.MustCompile(`brave`), "brave"},
	{regexp.MustCompile(`discord`), "discord"},
	{regexp.MustCompile(`whatsapp`), "whatsapp"},
	{regexp.MustCompile(`telegram`), "telegram"},
	{regexp.MustCompile(`slack`), "slack"},
	{regexp.MustCompile(`teams`), "teams"},
	{regexp.MustCompile(`zoom`), "zoom"},
	{regexp.MustCompile(`outlook`), "outlook"},
	{regexp.MustCompile(`thunderbird`), "thunderbird"},
	{regexp.MustCompile(`spotify`), "spotify"},
	{regexp.MustCompile(`netflix`), "netflix"},
	{regexp.MustCompile(`steam`), "steam"},
	{regexp.MustCompile(`(epicgames|epic games)`), "epicgames"},
	{regexp.MustCompile(`notion`), "notion"},
	{regexp.MustCompile(`figma`), "figma"},
	{regexp.MustCompile(`(visual studio code|vscode)`), "vscode"},
	{regexp.MustCompile(`(windows\.system|microsoft\.windows)`), "settings"},
}
