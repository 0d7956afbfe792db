package display

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
)

const mjpegBoundary = "facekioskframe"

// MJPEGHandler streams canvas frames as multipart/x-mixed-replace until the
// client disconnects.
func MJPEGHandler(c *Canvas) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		mw := multipart.NewWriter(w)
		if err := mw.SetBoundary(mjpegBoundary); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mjpegBoundary))
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		frame, seq := c.Latest()
		for {
			if frame != nil {
				header := textproto.MIMEHeader{}
				header.Set("Content-Type", "image/jpeg")
				header.Set("Content-Length", strconv.Itoa(len(frame)))
				part, err := mw.CreatePart(header)
				if err != nil {
					return
				}
				if _, err := part.Write(frame); err != nil {
					logging.Debugf("MJPEG client went away: %v", err)
					return
				}
				flusher.Flush()
			}

			var err error
			frame, seq, err = c.Next(r.Context(), seq)
			if err != nil {
				return
			}
		}
	})
}
