package dialer

const helpText = "\r" +
	"Usage: [<line #>] command [arguments]\n" +
	"-- Line Actions (lines 1-9) --\n" +
	"o     - Go off hook\n" +
	"dt    - Dial digits using DTMF\n" +
	"dp    - Dial digits using pulse dialing (not supported currently)\n" +
	"a     - Answer incoming call\n" +
	"f     - Hook flash\n" +
	"h     - Go on hook\n" +
	"-- General Actions --\n" +
	"k     - hang up all active lines\n" +
	"s     - sleep for N seconds\n" +
	"ms    - sleep for N milliseconds\n" +
	"q     - Quit\n" +
	"-- Examples --\n" +
	"1o             ; originate on line 1\n" +
	"2 o            ; originate on line 2 (whitespace is ignored)\n" +
	"1dt47          ; dial DTMF 47 on line 1\n" +
	"ms750          ; sleep for 750ms\n"
