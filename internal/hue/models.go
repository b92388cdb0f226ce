package hue

// ButtonInfo describes a button resource (v2 API).
type ButtonInfo struct {
	// Device is the owning device ID, shared by every button on a switch.
	Device string
	// Number is the 1-based control ID.
	Number int
}

type resourceRef struct {
	RID   string `json:"rid"`
	RType string `json:"rtype"`
}

type buttonResource struct {
	ID       string      `json:"id"`
	Owner    resourceRef `json:"owner"`
	Metadata struct {
		ControlID int `json:"control_id"`
	} `json:"metadata"`
}

// streamEvent is one event of the v2 event stream.
type streamEvent struct {
	Type string       `json:"type"`
	ID   string       `json:"id"`
	Data []streamItem `json:"data"`
}

type streamItem struct {
	ID     string       `json:"id"`
	Type   string       `json:"type"`
	Owner  *resourceRef `json:"owner,omitempty"`
	Button *struct {
		LastEvent    string `json:"last_event"`
		ButtonReport *struct {
			Updated string `json:"updated"`
			Event   string `json:"event"`
		} `json:"button_report"`
	} `json:"button,omitempty"`
	RelativeRotary *struct {
		LastEvent *struct {
			Action   string `json:"action"`
			Rotation struct {
				Direction string `json:"direction"`
				Steps     int    `json:"steps"`
				Duration  int    `json:"duration"`
			} `json:"rotation"`
		} `json:"last_event"`
		RotaryReport *struct {
			Updated string `json:"updated"`
		} `json:"rotary_report"`
	} `json:"relative_rotary,omitempty"`
	Status string `json:"status,omitempty"`
}
