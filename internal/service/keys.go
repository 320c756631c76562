package service

import "fmt"

// Redis key layout shared by the compile and track services.

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func jobCancelKey(jobID string) string {
	return fmt.Sprintf("job:cancel:%s", jobID)
}

func trackKey(trackID string) string {
	return fmt.Sprintf("track:%s", trackID)
}

// trackOwnerKey indexes a user's tracks, scored by upload time.
func trackOwnerKey(ownerID string) string {
	return fmt.Sprintf("tracks:%s", ownerID)
}

// trackRefsKey counts non-terminal jobs referencing a custom track.
// A track cannot be deleted while the counter is positive.
func trackRefsKey(trackID string) string {
	return fmt.Sprintf("track:refs:%s", trackID)
}
