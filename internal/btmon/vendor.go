package btmon

import "strings"

// Vendor values for addresses without a table entry.
const (
	VendorUnknown       = "Unknown"
	VendorRandomAddress = "N/A - Random Address"
)

// ouiVendors maps the first three octets of a public address to the
// registered organisation.
var ouiVendors = map[string]string{
	"00:02:5B": "Cambridge Silicon Radio",
	"00:02:EE": "Nokia Corporation",
	"00:03:7A": "Taiyo Yuden Co., Ltd.",
	"00:03:93": "Apple, Inc.",
	"00:05:02": "Apple, Inc.",
	"00:05:C9": "LG Electronics",
	"00:07:61": "Logitech",
	"00:07:80": "Bluegiga Technologies OY",
	"00:0A:27": "Apple, Inc.",
	"00:0A:95": "Apple, Inc.",
	"00:0A:D9": "Sony Ericsson Mobile Communications AB",
	"00:0B:57": "Silicon Laboratories",
	"00:0B:E4": "Hosiden Corporation",
	"00:0D:93": "Apple, Inc.",
	"00:0E:07": "Sony Ericsson Mobile Communications AB",
	"00:0E:6D": "Murata Manufacturing Co., Ltd.",
	"00:0F:DE": "Sony Ericsson Mobile Communications AB",
	"00:10:FA": "Apple, Inc.",
	"00:11:24": "Apple, Inc.",
	"00:11:67": "Integrated System Solution Corp.",
	"00:12:47": "Samsung Electronics Co.,Ltd",
	"00:12:4B": "Texas Instruments",
	"00:13:A9": "Sony Corporation",
	"00:14:51": "Apple, Inc.",
	"00:15:99": "Samsung Electronics Co.,Ltd",
	"00:16:32": "Samsung Electronics Co.,Ltd",
	"00:16:CB": "Apple, Inc.",
	"00:17:C9": "Samsung Electronics Co.,Ltd",
	"00:17:E9": "Texas Instruments",
	"00:17:F2": "Apple, Inc.",
	"00:18:41": "High Tech Computer Corp.",
	"00:19:7F": "Plantronics, Inc.",
	"00:19:E3": "Apple, Inc.",
	"00:1A:11": "Google, Inc.",
	"00:1A:22": "eQ-3 Entwicklung GmbH",
	"00:1A:45": "GN Netcom A/S",
	"00:1A:7D": "cyber-blue(HK)Ltd",
	"00:1A:80": "Sony Corporation",
	"00:1A:DC": "Nokia Corporation",
	"00:1B:59": "Sony Ericsson Mobile Communications AB",
	"00:1B:63": "Apple, Inc.",
	"00:1B:98": "Samsung Electronics Co.,Ltd",
	"00:1C:26": "Hon Hai Precision Ind. Co.,Ltd.",
	"00:1C:43": "Samsung Electronics Co.,Ltd",
	"00:1C:62": "LG Electronics",
	"00:1C:A4": "Sony Ericsson Mobile Communications AB",
	"00:1C:B3": "Apple, Inc.",
	"00:1D:25": "Samsung Electronics Co.,Ltd",
	"00:1D:4F": "Apple, Inc.",
	"00:1D:D8": "Microsoft Corporation",
	"00:1D:FE": "Palm, Inc.",
	"00:1E:3A": "Nokia Corporation",
	"00:1E:4C": "Hon Hai Precision Ind. Co.,Ltd.",
	"00:1E:52": "Apple, Inc.",
	"00:1E:75": "LG Electronics",
	"00:1E:AE": "Continental Automotive Systems",
	"00:1E:C2": "Apple, Inc.",
	"00:1E:E1": "Samsung Electronics Co.,Ltd",
	"00:1F:20": "Logitech",
	"00:1F:3A": "Hon Hai Precision Ind. Co.,Ltd.",
	"00:1F:5B": "Apple, Inc.",
	"00:1F:DF": "Nokia Corporation",
	"00:1F:F3": "Apple, Inc.",
	"00:21:3C": "AliphCom",
	"00:21:4F": "ALPS Electric Co., Ltd.",
	"00:21:E9": "Apple, Inc.",
	"00:22:41": "Apple, Inc.",
	"00:22:48": "Microsoft Corporation",
	"00:22:58": "Taiyo Yuden Co., Ltd.",
	"00:23:12": "Apple, Inc.",
	"00:23:32": "Apple, Inc.",
	"00:23:4E": "Hon Hai Precision Ind. Co.,Ltd.",
	"00:23:6C": "Apple, Inc.",
	"00:23:76": "HTC Corporation",
	"00:23:DF": "Apple, Inc.",
	"00:24:36": "Apple, Inc.",
	"00:24:90": "Samsung Electronics Co.,Ltd",
	"00:24:BE": "Sony Corporation",
	"00:25:00": "Apple, Inc.",
	"00:25:4B": "Apple, Inc.",
	"00:25:56": "Hon Hai Precision Ind. Co.,Ltd.",
	"00:25:BC": "Apple, Inc.",
	"00:26:08": "Apple, Inc.",
	"00:26:37": "Samsung Electro-Mechanics",
	"00:26:4A": "Apple, Inc.",
	"00:26:B0": "Apple, Inc.",
	"00:26:BB": "Apple, Inc.",
	"00:50:F2": "Microsoft Corporation",
	"00:60:57": "Murata Manufacturing Co., Ltd.",
	"00:80:37": "Ericsson",
	"00:AA:70": "LG Electronics",
	"10:68:3F": "LG Electronics",
	"28:CF:E9": "Apple, Inc.",
	"34:23:87": "Hon Hai Precision Ind. Co.,Ltd.",
	"38:E7:D8": "HTC Corporation",
	"3C:15:C2": "Apple, Inc.",
	"44:65:0D": "Amazon Technologies Inc.",
	"60:03:08": "Apple, Inc.",
	"74:C2:46": "Amazon Technologies Inc.",
	"7C:1E:52": "Microsoft Corporation",
	"7C:D1:C3": "Apple, Inc.",
	"88:6B:0F": "Bluegiga Technologies OY",
	"88:C6:26": "Logitech",
	"9C:20:7B": "Apple, Inc.",
	"A4:C1:38": "Telink Semiconductor",
	"AC:BC:32": "Apple, Inc.",
	"B4:99:4C": "Texas Instruments",
	"B8:27:EB": "Raspberry Pi Foundation",
	"D0:39:72": "Texas Instruments",
	"D4:F5:13": "Texas Instruments",
	"D8:96:95": "Apple, Inc.",
	"DC:A6:32": "Raspberry Pi Trading Ltd",
	"E0:06:E6": "Hon Hai Precision Ind. Co.,Ltd.",
	"E0:F8:47": "Apple, Inc.",
	"E4:5F:01": "Raspberry Pi Trading Ltd",
	"F0:27:2D": "Amazon Technologies Inc.",
	"F0:D1:A9": "Apple, Inc.",
	"F4:F5:D8": "Google, Inc.",
}

// LookupVendor resolves the vendor of a canonical public address from its
// OUI prefix. Unknown prefixes yield VendorUnknown.
func LookupVendor(address string) string {
	if len(address) < 8 {
		return VendorUnknown
	}
	if v, ok := ouiVendors[strings.ToUpper(address[:8])]; ok {
		return v
	}
	return VendorUnknown
}
