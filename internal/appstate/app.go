package appstate

// UserRole is the knowledge tier picked during onboarding.
type UserRole string

const (
	RoleJunior     UserRole = "junior"
	RoleSenior     UserRole = "senior"
	RoleOpenSource UserRole = "opensource"
)

// DefaultPrimaryColor is the accent color of a fresh installation.
const DefaultPrimaryColor = "#F6C944"

// UserProfile is the profile entered during onboarding.
type UserProfile struct {
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
	Avatar string   `json:"avatar,omitempty"`
}

// App is the navigation, onboarding and profile store.
type App struct {
	OnboardingComplete bool         `json:"onboardingComplete"`
	ActiveModule       *string      `json:"activeModule"`
	UserProfile        *UserProfile `json:"userProfile"`
	IsSidebarOpen      bool         `json:"isSidebarOpen"`
	Language           string       `json:"language"`
	PrimaryColor       string       `json:"primaryColor"`
}

func defaultApp() App {
	return App{
		IsSidebarOpen: true,
		Language:      "en",
		PrimaryColor:  DefaultPrimaryColor,
	}
}

func cloneApp(a App) App {
	if a.ActiveModule != nil {
		m := *a.ActiveModule
		a.ActiveModule = &m
	}
	if a.UserProfile != nil {
		p := *a.UserProfile
		a.UserProfile = &p
	}
	return a
}
