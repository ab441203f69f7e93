//go:build windows

package gui

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"screen-translate-llm/src/input"
	"screen-translate-llm/src/selection"
)

const (
	wmRender         = 0x8000 + 1 // WM_APP + 1
	wmEraseBkgnd     = 0x0014
	wmMouseActivate  = 0x0021
	wmCaptureChanged = 0x0215
	maNoActivate     = 3

	wsExNoActivate  = 0x08000000
	wsExTransparent = 0x00000020

	lwaColorKey = 0x1
	lwaAlpha    = 0x2

	dtCenter      = 0x0001
	dtVCenter     = 0x0004
	dtWordBreak   = 0x0010
	dtSingleLine  = 0x0020
	dtNoPrefix    = 0x0800
	dtEndEllipsis = 0x8000

	overlayAlpha = 110
	toastAlpha   = 235
	hideTimeout  = 250 * time.Millisecond
	closeTimeout = 2 * time.Second
)

// Colors are COLORREF values, 0x00BBGGRR.
const (
	colorBlack  = 0x00000000
	colorWhite  = 0x00FFFFFF
	colorAccent = 0x00F48542
	colorText   = 0x00333333
	colorDim    = 0x00666666
	colorBorder = 0x00DDDDDD
	colorError  = 0x003643F4
	colorGreen  = 0x0050AF4C
	// colorHole is keyed out of the overlay so the selected area shows undimmed.
	colorHole = 0x00FF00FF
)

var (
	user32                         = windows.NewLazySystemDLL("user32.dll")
	gdi32                          = windows.NewLazySystemDLL("gdi32.dll")
	dwmapi                         = windows.NewLazySystemDLL("dwmapi.dll")
	procSetLayeredWindowAttributes = user32.NewProc("SetLayeredWindowAttributes")
	procAllowSetForegroundWindow   = user32.NewProc("AllowSetForegroundWindow")
	procFillRect                   = user32.NewProc("FillRect")
	procDrawText                   = user32.NewProc("DrawTextW")
	procCreateSolidBrush           = gdi32.NewProc("CreateSolidBrush")
	procCreatePen                  = gdi32.NewProc("CreatePen")
	procRectangle                  = gdi32.NewProc("Rectangle")
	procDwmFlush                   = dwmapi.NewProc("DwmFlush")
)

// One surface per process: the window procedure finds it here.
var (
	active      atomic.Pointer[surface]
	wndCallback = sync.OnceValue(func() uintptr { return syscall.NewCallback(surfaceWndProc) })
)

type surface struct {
	opts Options

	ready     chan error
	done      chan struct{}
	hidden    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	pending   Frame
	overlayUp bool

	// Owned by the window thread.
	instance  win.HINSTANCE
	className *uint16
	overlay   win.HWND
	panel     win.HWND
	toast     win.HWND
	cross     win.HCURSOR
	arrow     win.HCURSOR
	shown     Frame
	capturing win.HWND
}

func newSurface(opts Options) (Surface, error) {
	s := &surface{
		opts:   opts,
		ready:  make(chan error, 1),
		done:   make(chan struct{}),
		hidden: make(chan struct{}, 1),
	}
	if !active.CompareAndSwap(nil, s) {
		return nil, errors.New("a surface is already open")
	}
	go s.run()
	if err := <-s.ready; err != nil {
		active.CompareAndSwap(s, nil)
		return nil, err
	}
	zap.L().Info("gui: native surface ready")
	return s, nil
}

// run owns every window. Win32 ties windows to the thread that made them.
func (s *surface) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.done)

	if err := s.createWindows(); err != nil {
		s.destroyWindows()
		s.ready <- err
		return
	}
	s.ready <- nil

	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 {
			break
		}
		if ret == -1 {
			zap.L().Error("gui: GetMessage failed")
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
	s.destroyWindows()
	active.CompareAndSwap(s, nil)
	zap.L().Info("gui: window thread stopped")
}

func (s *surface) createWindows() error {
	s.instance = win.GetModuleHandle(nil)
	// A unique class name lets a restarted surface register again.
	name, err := windows.UTF16PtrFromString(fmt.Sprintf("ScreenTranslateSurface_%d", time.Now().UnixNano()))
	if err != nil {
		return err
	}
	s.className = name
	s.cross = win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS))
	s.arrow = win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_ARROW))

	wc := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   wndCallback(),
		HInstance:     s.instance,
		LpszClassName: s.className,
	}
	if win.RegisterClassEx(&wc) == 0 {
		return errors.New("failed to register window class")
	}

	s.overlay = s.create(win.WS_EX_TOPMOST|win.WS_EX_LAYERED|win.WS_EX_TOOLWINDOW, "Select region")
	s.panel = s.create(win.WS_EX_TOPMOST|win.WS_EX_TOOLWINDOW|wsExNoActivate, "Translation")
	s.toast = s.create(win.WS_EX_TOPMOST|win.WS_EX_LAYERED|win.WS_EX_TOOLWINDOW|wsExNoActivate|wsExTransparent, "Notice")
	if s.overlay == 0 || s.panel == 0 || s.toast == 0 {
		return errors.New("failed to create surface windows")
	}

	setLayered(s.overlay, colorHole, overlayAlpha, lwaColorKey|lwaAlpha)
	setLayered(s.toast, 0, toastAlpha, lwaAlpha)
	return nil
}

func (s *surface) create(exStyle uint32, title string) win.HWND {
	t, _ := windows.UTF16PtrFromString(title)
	return win.CreateWindowEx(exStyle, s.className, t, win.WS_POPUP,
		0, 0, 1, 1, 0, 0, s.instance, nil)
}

func (s *surface) destroyWindows() {
	for _, hwnd := range []win.HWND{s.overlay, s.panel, s.toast} {
		if hwnd != 0 {
			win.DestroyWindow(hwnd)
		}
	}
	if s.className != nil {
		win.UnregisterClass(s.className)
	}
}

func setLayered(hwnd win.HWND, key uint32, alpha byte, flags uint32) {
	ret, _, err := procSetLayeredWindowAttributes.Call(uintptr(hwnd), uintptr(key), uintptr(alpha), uintptr(flags))
	if ret == 0 {
		zap.L().Warn("gui: SetLayeredWindowAttributes failed", zap.Error(err))
	}
}

// Render hands the scene to the window thread. When the overlay goes away it
// waits until the screen no longer shows it, so a capture that follows does
// not photograph the dimming.
func (s *surface) Render(scene selection.Scene) {
	f := Layout(scene)

	s.mu.Lock()
	hiding := s.overlayUp && !f.Overlay
	s.overlayUp = f.Overlay
	s.pending = f
	s.mu.Unlock()

	if hiding {
		select {
		case <-s.hidden:
		default:
		}
	}
	win.PostMessage(s.overlay, wmRender, 0, 0)
	if hiding {
		select {
		case <-s.hidden:
		case <-s.done:
		case <-time.After(hideTimeout):
			zap.L().Warn("gui: overlay hide not confirmed")
		}
	}
}

func (s *surface) Close() error {
	s.closeOnce.Do(func() {
		win.PostMessage(s.overlay, win.WM_CLOSE, 0, 0)
	})
	select {
	case <-s.done:
		return nil
	case <-time.After(closeTimeout):
		return errors.New("gui: window thread did not stop")
	}
}

func surfaceWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	s := active.Load()
	if s == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case wmRender:
		s.apply()
		return 0

	case win.WM_CLOSE:
		if hwnd == s.overlay {
			win.PostQuitMessage(0)
		}
		return 0

	case wmEraseBkgnd:
		return 1

	case win.WM_PAINT:
		s.paint(hwnd)
		return 0

	case wmMouseActivate:
		if hwnd != s.overlay {
			return maNoActivate
		}

	case win.WM_SETCURSOR:
		if hwnd == s.overlay {
			win.SetCursor(s.cross)
		} else {
			win.SetCursor(s.arrow)
		}
		return 1

	case win.WM_NCHITTEST:
		return uintptr(win.HTCLIENT)

	case win.WM_LBUTTONDOWN:
		s.pointer(hwnd, input.PointerDown, lParam)
		return 0

	case win.WM_MOUSEMOVE:
		if s.capturing == hwnd {
			s.pointer(hwnd, input.PointerMove, lParam)
		}
		return 0

	case win.WM_LBUTTONUP:
		if s.capturing == hwnd {
			s.pointer(hwnd, input.PointerUp, lParam)
		}
		return 0

	case wmCaptureChanged:
		if win.HWND(lParam) != hwnd && s.capturing == hwnd {
			s.capturing = 0
		}
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func (s *surface) pointer(hwnd win.HWND, kind input.Kind, lParam uintptr) {
	var ev input.Event
	switch hwnd {
	case s.overlay:
		client := image.Pt(
			int(int16(win.LOWORD(uint32(lParam)))),
			int(int16(win.HIWORD(uint32(lParam)))))
		ev = input.Event{Kind: kind, Point: s.shown.OverlayPoint(client)}
	case s.panel:
		// The panel moves while it is dragged, so read the cursor in
		// desktop pixels instead of trusting the client offset.
		var pt win.POINT
		if !win.GetCursorPos(&pt) {
			return
		}
		ev = input.Event{Kind: kind, Point: s.shown.PagePoint(image.Pt(int(pt.X), int(pt.Y)))}.OnPanel()
	default:
		return
	}

	switch kind {
	case input.PointerDown:
		win.SetCapture(hwnd)
		s.capturing = hwnd
	case input.PointerUp:
		s.capturing = 0
		win.ReleaseCapture()
	}

	if s.opts.OnInput != nil {
		s.opts.OnInput(ev)
	}
}

func (s *surface) apply() {
	s.mu.Lock()
	f := s.pending
	s.mu.Unlock()
	prev := s.shown
	s.shown = f

	if f.Overlay {
		r := f.Screen
		win.SetWindowPos(s.overlay, win.HWND_TOPMOST,
			int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()), win.SWP_SHOWWINDOW)
		if !prev.Overlay {
			s.focus(s.overlay)
		}
		win.InvalidateRect(s.overlay, nil, false)
	} else if prev.Overlay {
		s.hide(s.overlay)
		// Wait for the compositor so the desktop no longer shows the overlay.
		if procDwmFlush.Find() == nil {
			procDwmFlush.Call()
		}
		select {
		case s.hidden <- struct{}{}:
		default:
		}
	}

	if f.Panel != nil {
		s.place(s.panel, f.Panel.Bounds)
	} else {
		s.hide(s.panel)
	}
	if f.Toasts != nil {
		s.place(s.toast, f.Toasts.Bounds)
	} else {
		s.hide(s.toast)
	}
}

func (s *surface) focus(hwnd win.HWND) {
	procAllowSetForegroundWindow.Call(uintptr(windows.GetCurrentProcessId()))
	win.SetForegroundWindow(hwnd)
	win.BringWindowToTop(hwnd)
	win.SetFocus(hwnd)
}

func (s *surface) place(hwnd win.HWND, r image.Rectangle) {
	win.SetWindowPos(hwnd, win.HWND_TOPMOST,
		int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()),
		win.SWP_NOACTIVATE|win.SWP_SHOWWINDOW)
	win.InvalidateRect(hwnd, nil, false)
}

func (s *surface) hide(hwnd win.HWND) {
	if s.capturing == hwnd {
		s.capturing = 0
		win.ReleaseCapture()
	}
	win.ShowWindow(hwnd, win.SW_HIDE)
}

func (s *surface) paint(hwnd win.HWND) {
	var ps win.PAINTSTRUCT
	hdc := win.BeginPaint(hwnd, &ps)
	defer win.EndPaint(hwnd, &ps)

	f := s.shown
	switch hwnd {
	case s.overlay:
		paintOverlay(hdc, f)
	case s.panel:
		if f.Panel != nil {
			paintPanel(hdc, *f.Panel)
		}
	case s.toast:
		if f.Toasts != nil {
			paintToasts(hdc, *f.Toasts)
		}
	}
}

func paintOverlay(hdc win.HDC, f Frame) {
	full := image.Rect(0, 0, f.Screen.Dx(), f.Screen.Dy())
	fillRect(hdc, full, colorBlack)

	if !f.Selection.Empty() {
		fillRect(hdc, f.Selection, colorHole)
		frameRect(hdc, f.Selection, colorAccent, 2)
	}

	if f.Instructions != "" {
		w := scale(520, f.Ratio)
		h := scale(40, f.Ratio)
		x := (full.Dx() - w) / 2
		y := scale(20, f.Ratio)
		box := image.Rect(x, y, x+w, y+h)
		fillRect(hdc, box, colorText)
		drawText(hdc, f.Instructions, box, colorWhite, dtCenter|dtVCenter|dtSingleLine)
	}
}

func paintPanel(hdc win.HDC, p PanelFrame) {
	size := p.Bounds.Size()
	full := image.Rect(0, 0, size.X, size.Y)
	fillRect(hdc, full, colorWhite)
	frameRect(hdc, full, colorBorder, 1)

	pad := size.X / 25
	title := image.Rect(pad, pad, size.X-pad, pad+size.Y/8)
	drawText(hdc, p.Title, title, colorText, dtSingleLine|dtVCenter|dtEndEllipsis)

	bodyBottom := size.Y - pad
	for _, b := range p.Buttons {
		if b.Kind != selection.CloseButton && b.Rect.Min.Y-pad < bodyBottom {
			bodyBottom = b.Rect.Min.Y - pad
		}
	}
	body := image.Rect(pad, title.Max.Y+pad/2, size.X-pad, bodyBottom)
	color := uint32(colorText)
	if p.Loading {
		color = colorDim
	}
	drawText(hdc, p.Text, body, color, dtWordBreak|dtEndEllipsis)

	for _, b := range p.Buttons {
		switch {
		case b.Kind == selection.CloseButton:
			drawText(hdc, b.Label, b.Rect, colorError, dtCenter|dtVCenter|dtSingleLine)
		case b.Highlight:
			fillRect(hdc, b.Rect, colorGreen)
			drawText(hdc, b.Label, b.Rect, colorWhite, dtCenter|dtVCenter|dtSingleLine)
		default:
			fillRect(hdc, b.Rect, colorAccent)
			drawText(hdc, b.Label, b.Rect, colorWhite, dtCenter|dtVCenter|dtSingleLine)
		}
	}
}

func paintToasts(hdc win.HDC, t ToastFrame) {
	size := t.Bounds.Size()
	fillRect(hdc, image.Rect(0, 0, size.X, size.Y), colorWhite)
	for _, item := range t.Items {
		fillRect(hdc, item.Rect, colorError)
		inner := item.Rect.Inset(item.Rect.Dy() / 4)
		drawText(hdc, item.Text, inner, colorWhite, dtVCenter|dtSingleLine|dtEndEllipsis)
	}
}

func winRect(r image.Rectangle) win.RECT {
	return win.RECT{Left: int32(r.Min.X), Top: int32(r.Min.Y), Right: int32(r.Max.X), Bottom: int32(r.Max.Y)}
}

func fillRect(hdc win.HDC, r image.Rectangle, color uint32) {
	brush, _, _ := procCreateSolidBrush.Call(uintptr(color))
	if brush == 0 {
		return
	}
	defer win.DeleteObject(win.HGDIOBJ(brush))
	rc := winRect(r)
	procFillRect.Call(uintptr(hdc), uintptr(unsafe.Pointer(&rc)), brush)
}

func frameRect(hdc win.HDC, r image.Rectangle, color uint32, width int) {
	pen, _, _ := procCreatePen.Call(0, uintptr(width), uintptr(color))
	if pen == 0 {
		return
	}
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))
	procRectangle.Call(uintptr(hdc), uintptr(r.Min.X), uintptr(r.Min.Y), uintptr(r.Max.X), uintptr(r.Max.Y))
	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}

func drawText(hdc win.HDC, text string, r image.Rectangle, color uint32, format uint32) {
	if text == "" {
		return
	}
	p, err := windows.UTF16PtrFromString(text)
	if err != nil {
		return
	}
	win.SetBkMode(hdc, win.TRANSPARENT)
	win.SetTextColor(hdc, win.COLORREF(color))
	rc := winRect(r)
	procDrawText.Call(uintptr(hdc), uintptr(unsafe.Pointer(p)), ^uintptr(0), uintptr(unsafe.Pointer(&rc)), uintptr(format|dtNoPrefix))
}
