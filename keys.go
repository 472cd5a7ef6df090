package hibercheck

// Key is an Android key event name, as accepted by "input keyevent".
type Key string

// Key events for use with Press.
const (
	Back      Key = "KEYCODE_BACK"
	Home      Key = "KEYCODE_HOME"
	WakeUp    Key = "KEYCODE_WAKEUP"
	Sleep     Key = "KEYCODE_SLEEP"
	Power     Key = "KEYCODE_POWER"
	Menu      Key = "KEYCODE_MENU"
	Enter     Key = "KEYCODE_ENTER"
	Tab       Key = "KEYCODE_TAB"
	Escape    Key = "KEYCODE_ESCAPE"
	AppSwitch Key = "KEYCODE_APP_SWITCH"
	DpadUp    Key = "KEYCODE_DPAD_UP"
	DpadDown  Key = "KEYCODE_DPAD_DOWN"
	DpadLeft  Key = "KEYCODE_DPAD_LEFT"
	DpadRight Key = "KEYCODE_DPAD_RIGHT"
)
